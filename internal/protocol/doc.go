// Package protocol implements the framed binary output stream.
// It defines the little-endian message header and the metadata/stream-start/
// audio/stream-stop message sequence each recorder emits to a downstream
// consumer over a single pipe.
package protocol

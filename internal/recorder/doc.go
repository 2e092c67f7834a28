// Package recorder ties one capture device to the chunking and conversion
// pipeline and drives a Handler with the resulting packets.
//
// A Recorder moves through a strict lifecycle: it is created configured,
// started at most once, and stopped at most once. The real-time capture
// callback runs the whole per-frame path (append, drain, convert, emit)
// and never fails outward; emission errors are counted and logged instead.
package recorder

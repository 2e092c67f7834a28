// Package output implements the sinks recorded audio is delivered to:
// a length-prefixed binary stream on an io.Writer and per-source WAV
// files on disk. Both sinks implement recorder.Handler and serialize
// writes internally, so the system and microphone recorders can share
// one sink.
package output

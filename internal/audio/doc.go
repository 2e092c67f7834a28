// Package audio handles PCM format description, chunk buffering, and format conversion.
// It accumulates raw bytes delivered by real-time capture callbacks into
// fixed-duration packets and implements a streaming sample-rate/bit-depth
// converter for downstream speech-recognition consumers.
package audio

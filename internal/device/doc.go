// Package device resolves logical capture targets into live capture devices.
// It manages the system-audio process tap (Core Audio, darwin only) and the
// default microphone input (PortAudio), exposing each as a format-describable
// device that delivers raw frames through a registered real-time callback.
package device

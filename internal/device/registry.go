package device

import "sync"

// callbackRegistry maps small integer handles to live capture callbacks.
// The platform audio layer round-trips a handle through its opaque
// client-data pointer instead of a raw Go pointer, so a stale or corrupted
// value from the C side can never be dereferenced as a Go object.
type callbackRegistry struct {
	mu      sync.RWMutex
	next    uintptr
	entries map[uintptr]RawFrameFunc
}

// callbacks is the process-wide handle table shared by all capture devices.
var callbacks = &callbackRegistry{entries: make(map[uintptr]RawFrameFunc)}

// register stores fn and returns its handle. Handles are never reused
// within a process.
func (r *callbackRegistry) register(fn RawFrameFunc) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.entries[r.next] = fn
	return r.next
}

// lookup resolves a handle delivered by the platform back to its callback.
// Called on the real-time audio thread; the read lock is only ever
// contended by the brief register/unregister writes at start/stop.
func (r *callbackRegistry) lookup(h uintptr) (RawFrameFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.entries[h]
	return fn, ok
}

// unregister removes a handle. Unknown handles are ignored so teardown
// paths can call it unconditionally.
func (r *callbackRegistry) unregister(h uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, h)
}

// size returns the number of live registrations.
func (r *callbackRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

package acquire

import (
	"sync/atomic"

	"github.com/roach88/workshopdl/internal/workshop"
)

// SessionHandle is a reference-counted handle to the active service session.
//
// The controller holds one reference and every registered completion
// callback holds another, so the session outlives whichever of them finishes
// last. The underlying session is closed when the last reference is released.
//
// SessionHandle itself satisfies workshop.Session; Close releases the
// caller's reference instead of closing the session outright.
type SessionHandle struct {
	workshop.Session
	refs     atomic.Int32
	closeErr error
}

// NewSessionHandle wraps s with a single reference owned by the caller.
func NewSessionHandle(s workshop.Session) *SessionHandle {
	h := &SessionHandle{Session: s}
	h.refs.Store(1)
	return h
}

// Retain adds a reference and returns h for capture.
func (h *SessionHandle) Retain() *SessionHandle {
	h.refs.Add(1)
	return h
}

// Release drops a reference, closing the session on the last one.
func (h *SessionHandle) Release() error {
	switch n := h.refs.Add(-1); {
	case n == 0:
		h.closeErr = h.Session.Close()
		return h.closeErr
	case n < 0:
		h.refs.Store(0)
	}
	return nil
}

// Close releases the caller's reference.
func (h *SessionHandle) Close() error {
	return h.Release()
}

// Closed reports whether every reference has been released.
func (h *SessionHandle) Closed() bool {
	return h.refs.Load() <= 0
}

// Refs returns the current reference count.
func (h *SessionHandle) Refs() int {
	return int(h.refs.Load())
}

// callbackRegistration ties a registered callback to the reference it holds.
type callbackRegistration struct {
	handle *SessionHandle
	inner  workshop.Registration
	done   bool
}

// registerCallback registers fn with the session while holding a reference
// for the lifetime of the registration.
func (h *SessionHandle) registerCallback(fn func(h *SessionHandle, sig workshop.CompletionSignal)) *callbackRegistration {
	held := h.Retain()
	reg := &callbackRegistration{handle: held}
	reg.inner = h.Session.RegisterCompletionCallback(func(sig workshop.CompletionSignal) {
		if held.Closed() {
			return
		}
		fn(held, sig)
	})
	return reg
}

// Unregister removes the callback and releases its reference. Idempotent.
func (r *callbackRegistration) Unregister() {
	if r == nil || r.done {
		return
	}
	r.done = true
	r.inner.Unregister()
	_ = r.handle.Release()
}

package clock

import "sync"

// AsyncEventFlag is the async-wake primitive behind SleepUntil and
// the retry-loop sleeps in the connection manager (spec §4.1, §5
// "sleep in retry loops must be interruptible"). A signal from an
// interrupt handler (bare metal) or another goroutine (hosted) causes
// any in-progress wait on Armed to unblock promptly.
type AsyncEventFlag struct {
	mu    sync.Mutex
	armed chan struct{}
}

// NewAsyncEventFlag returns a flag ready to be waited on.
func NewAsyncEventFlag() *AsyncEventFlag {
	return &AsyncEventFlag{armed: make(chan struct{})}
}

// NotifyAsyncEvent wakes every waiter currently holding a channel from
// Armed. Safe to call from an interrupt handler or any goroutine, any
// number of times; a notification with no active waiter is dropped,
// matching the source's "async event while sleeping" semantics rather
// than a latched/sticky flag.
func (f *AsyncEventFlag) NotifyAsyncEvent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.armed)
	f.armed = make(chan struct{})
}

// Armed returns a channel that closes on the next NotifyAsyncEvent
// call. Callers must fetch a fresh channel immediately before each
// wait (e.g. each retry-loop sleep) so they observe only events that
// occur during that wait.
func (f *AsyncEventFlag) Armed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

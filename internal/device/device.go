// Package device provides the command-queue/event substrate the cache and
// scheduler transfer work onto: a pluggable Device interface satisfied in
// this module by a single in-process Software implementation, standing in
// for the OpenCL runtime the way the teacher's uring.Ring interface stands
// in for a real io_uring and is satisfied by a stub in tests.
package device

import (
	"sync"
)

// Event represents the completion of one async operation submitted to a
// Queue. It is safe to wait on from multiple goroutines.
type Event struct {
	done chan struct{}
	mu   sync.Mutex
	err  error
}

// NewEvent returns an event that is not yet signalled.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Signalled returns an event that has already completed successfully. Used
// for the cache's "already cached and unlocked" fast path, where Get must
// not re-transfer.
func Signalled() *Event {
	e := NewEvent()
	close(e.done)
	return e
}

// Signal marks the event complete, recording err (nil on success). Signal
// must be called exactly once.
func (e *Event) Signal(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
	close(e.done)
}

// Wait blocks until the event completes and returns its error, if any.
func (e *Event) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// WaitList is an explicit, possibly-empty list of events a work item
// depends on. Get always builds one, even when empty, rather than falling
// back to a queue-wide drain.
type WaitList []*Event

// Wait blocks until every event in the list has completed, returning the
// first error encountered (if any), after waiting for all of them.
func (wl WaitList) Wait() error {
	var first error
	for _, e := range wl {
		if err := e.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Buffer is an opaque handle to a device-resident allocation.
type Buffer interface {
	// Size returns the buffer's capacity in bytes.
	Size() int
}

// Queue accepts async work: a function to run once its wait list has
// completed, producing a new Event other work items can depend on. Queue
// implementations run fn on an internal goroutine; callers never block in
// Enqueue itself.
type Queue interface {
	// Enqueue runs fn once every event in wait has completed, signalling
	// the returned event with fn's result.
	Enqueue(wait WaitList, fn func() error) *Event
}

// Device is a registered compute target: it allocates buffers and hands
// out command queues.
type Device interface {
	// NewQueue returns a fresh command queue bound to this device.
	NewQueue() Queue
	// AllocBuffer allocates a device-resident buffer of the given size.
	AllocBuffer(size int) Buffer
	// Close releases device-side resources.
	Close() error
}

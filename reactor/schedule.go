// File: reactor/schedule.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduled actions and the thread-safe (due, seq) ordered registry the
// loop drains. Many producers insert and cancel concurrently; only the
// loop goroutine polls.

package reactor

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// Action is one scheduled callback: a function bound to an absolute due
// time, ordered by due time ascending with the insertion sequence breaking
// ties FIFO. Cancellation is lazy: the flag is set and the entry skipped
// when polled; it is not removed from the registry early.
type Action struct {
	fn        func()
	due       time.Time
	seq       uint64
	cancelled atomic.Bool
	loop      *Loop
}

// Cancel marks the action so it will not execute and reports whether this
// call performed the cancellation (idempotent). Cancelling an action whose
// callback is already running on the loop goroutine does not interrupt
// that run.
func (a *Action) Cancel() bool {
	if !a.cancelled.CompareAndSwap(false, true) {
		return false
	}
	// A cancelled head changes nothing in the registry shape, but a parked
	// loop must re-evaluate its deadline.
	a.loop.poller.Wakeup()
	return true
}

// Cancelled reports whether Cancel was called.
func (a *Action) Cancelled() bool { return a.cancelled.Load() }

// Due returns the absolute time the action was scheduled for.
func (a *Action) Due() time.Time { return a.due }

// actionHeap is a min-heap over (due, seq).
type actionHeap []*Action

func (h actionHeap) Len() int { return len(h) }

func (h actionHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}

func (h actionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *actionHeap) Push(x any) { *h = append(*h, x.(*Action)) }

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil // release the slot
	*h = old[:n-1]
	return a
}

// registry is the scheduled-action collection: a mutex-guarded min-heap
// safe under many producers plus the single loop consumer.
type registry struct {
	mu  sync.Mutex
	h   actionHeap
	seq uint64
}

// push inserts the action, assigning it a fresh sequence number.
func (r *registry) push(a *Action) {
	r.mu.Lock()
	a.seq = r.seq
	r.seq++
	heap.Push(&r.h, a)
	r.mu.Unlock()
}

// peekTime returns the due time of the head entry. The head may already be
// cancelled: the registry deliberately does not filter, so callers observe
// exactly the deadline the loop will next wake for.
func (r *registry) peekTime() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.h) == 0 {
		return time.Time{}, false
	}
	return r.h[0].due, true
}

// pop removes and returns the head entry, nil when empty.
func (r *registry) pop() *Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.h) == 0 {
		return nil
	}
	return heap.Pop(&r.h).(*Action)
}

// size counts all pending entries; lazy deletion keeps cancelled entries in
// place until polled, and they are included here.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.h)
}

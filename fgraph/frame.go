// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"sync"
	"sync/atomic"

	"github.com/gviegas/fgraph/driver"
)

// FrameCompletion tracks process-wide frame progress: a
// monotonically increasing "last completed frame" counter and a
// broadcast wait for callers blocked on waitForFrame.
//
// A single completed work item is naturally handed off through
// a buffered channel, but an arbitrary number of independent
// callers may be waiting on frame N to complete at once
// (persistent-resource CPU access, application code), so a
// sync.Cond broadcast serves better than a channel here.
type FrameCompletion struct {
	mu   sync.Mutex
	cond *sync.Cond
	last uint64
}

// NewFrameCompletion creates a FrameCompletion with its counter
// at 0.
func NewFrameCompletion() *FrameCompletion {
	fc := &FrameCompletion{}
	fc.cond = sync.NewCond(&fc.mu)
	return fc
}

// Current returns lastCompletedFrame.
func (fc *FrameCompletion) Current() uint64 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.last
}

// Advance raises lastCompletedFrame to n if n is greater than
// the current value, and wakes any waiters. It is a no-op
// (other than the wake, which is harmless) if n has already
// been reached, since the counter is monotonic.
func (fc *FrameCompletion) Advance(n uint64) {
	fc.mu.Lock()
	if n > fc.last {
		fc.last = n
	}
	fc.mu.Unlock()
	fc.cond.Broadcast()
}

// WaitForFrame blocks the calling goroutine until Current() is
// at least n.
func (fc *FrameCompletion) WaitForFrame(n uint64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for fc.last < n {
		fc.cond.Wait()
	}
}

// Queue is a logical submission lane bridging fgraph's
// frame-relative bookkeeping to a driver.QueueID. Its timeline
// counter counts the command buffers on this queue whose
// completion the executor has received; the executor does not
// create or signal a backend driver.Timeline for it.
type Queue struct {
	ID       driver.QueueID
	timeline atomic.Uint64
	// cmdBufIndex counts command buffers submitted on this queue,
	// incremented once per submission.
	cmdBufIndex atomic.Int64
}

// NewQueue creates a Queue bound to id with its timeline at 0.
func NewQueue(id driver.QueueID) *Queue { return &Queue{ID: id} }

// Advance increments the queue's timeline counter and returns
// the new value. The executor calls it once for each command
// buffer on this queue, when that buffer's completion arrives.
func (q *Queue) Advance() uint64 { return q.timeline.Add(1) }

// Value returns the queue's current timeline counter.
func (q *Queue) Value() uint64 { return q.timeline.Load() }

// NextCmdBufIndex increments and returns
// queueCommandBufferIndex for this queue.
func (q *Queue) NextCmdBufIndex() int64 { return q.cmdBufIndex.Add(1) }

// waitForCPUAccess blocks until it is safe for the CPU to
// perform access on a persistent resource whose last read/write
// stamps are readWait/writeWait: a read waits on
// the last write; a write waits on both the last read and the
// last write.
func waitForCPUAccess(fc *FrameCompletion, access AccessType, readWait, writeWait uint64) {
	if access.IsWrite() {
		w := writeWait
		if readWait > w {
			w = readWait
		}
		fc.WaitForFrame(w)
		return
	}
	fc.WaitForFrame(writeWait)
}

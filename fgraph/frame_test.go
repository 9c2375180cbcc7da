// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"sync"
	"testing"
	"time"

	"github.com/gviegas/fgraph/driver"
	"github.com/stretchr/testify/assert"
)

func TestFrameCompletionAdvanceIsMonotonic(t *testing.T) {
	fc := NewFrameCompletion()
	assert.EqualValues(t, 0, fc.Current())
	fc.Advance(5)
	assert.EqualValues(t, 5, fc.Current())
	fc.Advance(3)
	assert.EqualValues(t, 5, fc.Current())
}

func TestFrameCompletionWaitForFrameUnblocksOnAdvance(t *testing.T) {
	fc := NewFrameCompletion()
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			fc.WaitForFrame(4)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waiters returned before frame advanced")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(4)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters did not unblock after Advance")
	}
}

func TestQueueAdvanceAndCmdBufIndex(t *testing.T) {
	q := NewQueue(driver.QGraphics)
	assert.EqualValues(t, 0, q.Value())
	assert.EqualValues(t, 1, q.Advance())
	assert.EqualValues(t, 2, q.Advance())
	assert.EqualValues(t, 2, q.Value())

	assert.EqualValues(t, 1, q.NextCmdBufIndex())
	assert.EqualValues(t, 2, q.NextCmdBufIndex())
}

func TestWaitForCPUAccessRead(t *testing.T) {
	fc := NewFrameCompletion()
	fc.Advance(3)
	done := make(chan struct{})
	go func() {
		waitForCPUAccess(fc, AccessRead, 0, 5)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("read access proceeded before its write dependency completed")
	case <-time.After(20 * time.Millisecond):
	}
	fc.Advance(5)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read access never unblocked")
	}
}

func TestWaitForCPUAccessWriteWaitsOnBoth(t *testing.T) {
	fc := NewFrameCompletion()
	fc.Advance(4)
	done := make(chan struct{})
	go func() {
		waitForCPUAccess(fc, AccessWrite, 7, 2)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("write access proceeded before max(readWait, writeWait) completed")
	case <-time.After(20 * time.Millisecond):
	}
	fc.Advance(7)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write access never unblocked")
	}
}

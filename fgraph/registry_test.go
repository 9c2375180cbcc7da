// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testDesc struct{ n int }

func TestRegistryAllocateAssignsDistinctIndices(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	seen := make(map[uint32]struct{})
	for i := 0; i < 100; i++ {
		idx := r.allocate(0, testDesc{n: i}, "res")
		_, dup := seen[idx]
		assert.False(t, dup)
		seen[idx] = struct{}{}
		assert.Equal(t, i, r.descriptorAt(idx).n)
	}
}

func TestRegistryChunkSizeMustBeMultipleOf32(t *testing.T) {
	assert.Panics(t, func() { newRegistry[testDesc](0, false) })
	assert.Panics(t, func() { newRegistry[testDesc](31, false) })
	assert.NotPanics(t, func() { newRegistry[testDesc](32, false) })
}

func TestRegistryLabelAndMeta(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	idx := r.allocate(0, testDesc{}, "hello")
	assert.Equal(t, "hello", r.label(idx))
	r.setLabel(idx, "world")
	assert.Equal(t, "world", r.label(idx))

	assert.False(t, r.isInitialised(idx))
	r.setInitialised(idx)
	assert.True(t, r.isInitialised(idx))

	r.stampRead(idx, 3)
	r.stampWrite(idx, 5)
	read, write := r.waitFrames(idx)
	assert.EqualValues(t, 3, read)
	assert.EqualValues(t, 5, write)
}

func TestRegistryBaseHandle(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	idx := r.allocate(0, testDesc{}, "")
	assert.Equal(t, Invalid, r.base(idx))
	h := EncodeHandle(TTexture, 0, 7)
	r.setBase(idx, h)
	assert.Equal(t, h, r.base(idx))
}

func TestRegistryCycleFramesFreesTransientSlots(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	first := r.allocate(0, testDesc{}, "")
	r.cycleFrames()
	second := r.allocate(0, testDesc{}, "")
	assert.Equal(t, first, second)
}

func TestRegistryCycleFramesPanicsOnPersistent(t *testing.T) {
	r := newRegistry[testDesc](32, true)
	assert.Panics(t, func() { r.cycleFrames() })
}

func TestRegistryDisposeThenDrainReclaimsPersistentSlot(t *testing.T) {
	r := newRegistry[testDesc](32, true)
	idx := r.allocate(0, testDesc{}, "")
	r.stampRead(idx, 10)
	r.stampWrite(idx, 10)
	r.dispose(idx)

	// Not yet safe: current frame hasn't reached the wait frame.
	r.DrainDispose(5)
	reused := r.allocate(5, testDesc{}, "")
	assert.NotEqual(t, idx, reused)

	// Safe once current has caught up: allocate drains automatically.
	next := r.allocate(10, testDesc{}, "")
	assert.Equal(t, idx, next)
}

func TestRegistryDoubleDisposePanics(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	idx := r.allocate(0, testDesc{}, "")
	r.dispose(idx)
	assert.Panics(t, func() { r.dispose(idx) })
}

func TestRegistryUsageList(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	idx := r.allocate(0, testDesc{}, "")
	var a arena
	r.appendUsage(idx, &a, Usage{Access: AccessRead})
	r.appendUsage(idx, &a, Usage{Access: AccessWrite})

	us := r.usages(idx, &a)
	assert.Len(t, us, 2)
	assert.Equal(t, AccessRead, us[0].Access)
	assert.Equal(t, AccessWrite, us[1].Access)

	r.resetUsageList(idx)
	assert.Empty(t, r.usages(idx, &a))
}

func TestRegistryGrowsAcrossChunkBoundary(t *testing.T) {
	r := newRegistry[testDesc](32, false)
	for i := 0; i < 65; i++ {
		r.allocate(0, testDesc{n: i}, "")
	}
	assert.Len(t, r.chunks, 3)
}

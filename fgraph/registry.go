// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"container/heap"
	"sync"

	"github.com/gviegas/fgraph/internal/bitm"
)

// bitsPerWord is the granularity of the free-index bitmap; it
// must evenly divide the configured chunk size so that growing
// the bitmap by one chunk's worth of bits is an integral number
// of Grow calls.
const bitsPerWord = 32

// slotState is the per-slot state-flags column.
type slotState uint8

const (
	stateInitialised slotState = 1 << iota
	stateDisposePending
)

// resMeta is the metadata column shared by every resource type:
// label, state flags, usage-list head/tail (indices into a
// usage arena, -1 if empty), per-frame wait counters, and the
// base handle for resource views.
type resMeta struct {
	label     string
	state     slotState
	usageHead int32
	usageTail int32
	readWait  uint64
	writeWait uint64
	base      Handle
}

// chunk is one fixed-size block of column storage: the
// type-specific descriptor plus the common resMeta, indexed in
// parallel. Registries grow by appending chunks.
type chunk[D any] struct {
	descriptor []D
	meta       []resMeta
}

func newChunk[D any](size int) *chunk[D] {
	c := &chunk[D]{
		descriptor: make([]D, size),
		meta:       make([]resMeta, size),
	}
	for i := range c.meta {
		c.meta[i].usageHead = -1
		c.meta[i].usageTail = -1
		c.meta[i].base = Invalid
	}
	return c
}

// disposeEntry is one pending free of a persistent-registry
// slot, ordered by the frame at which it becomes safe to reuse
// the index (max(readWaitFrame, writeWaitFrame)).
type disposeEntry struct {
	index uint32
	wait  uint64
}

// disposeHeap is a container/heap min-heap over disposeEntry,
// keyed by wait frame. No third-party priority-queue library
// appears anywhere in the reference corpus, so this is the one
// component of the frame graph built on the standard library
// alone (see DESIGN.md).
type disposeHeap []disposeEntry

func (h disposeHeap) Len() int            { return len(h) }
func (h disposeHeap) Less(i, j int) bool  { return h[i].wait < h[j].wait }
func (h disposeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *disposeHeap) Push(x any)         { *h = append(*h, x.(disposeEntry)) }
func (h *disposeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// registry is a generic chunked column store, one instantiation
// per resource type (Buffer, Texture, ArgumentBuffer, ...). It
// backs both the transient and persistent variants; the only
// behavioral difference is how slots are freed: persistent
// slots go through dispose plus the deferred-free heap,
// transient slots are recycled in bulk by cycleFrames.
type registry[D any] struct {
	mu         sync.RWMutex
	chunkSize  int
	chunks     []*chunk[D]
	free       bitm.Bitm[uint32] // bit set == slot in use
	persistent bool
	disposeQ   disposeHeap
}

func newRegistry[D any](chunkSize int, persistent bool) *registry[D] {
	if chunkSize <= 0 || chunkSize%bitsPerWord != 0 {
		panic("fgraph: registry: chunk size must be a positive multiple of 32")
	}
	return &registry[D]{chunkSize: chunkSize, persistent: persistent}
}

func (r *registry[D]) slot(index uint32) (*chunk[D], int) {
	ci := int(index) / r.chunkSize
	si := int(index) % r.chunkSize
	return r.chunks[ci], si
}

func (r *registry[D]) growLocked() {
	r.free.Grow(r.chunkSize / bitsPerWord)
	r.chunks = append(r.chunks, newChunk[D](r.chunkSize))
}

// allocate reserves a slot, draining the persistent
// deferred-dispose queue first (a natural safe point to reclaim
// indices whose wait frame has passed), and returns its logical
// index with descriptor and label set.
func (r *registry[D]) allocate(current uint64, desc D, label string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistent {
		r.drainDisposeLocked(current)
	}
	idx, ok := r.free.Search()
	if !ok {
		r.growLocked()
		idx, ok = r.free.Search()
		if !ok {
			panic("fgraph: registry: growth invariant violated")
		}
	}
	r.free.Set(idx)
	c, slot := r.slot(uint32(idx))
	c.descriptor[slot] = desc
	c.meta[slot] = resMeta{label: label, usageHead: -1, usageTail: -1, base: Invalid}
	return uint32(idx)
}

// dispose retires index. For a persistent registry this enqueues
// the index on the deferred-free heap keyed by its current wait
// frames; the actual free happens once drainDispose observes
// that frame complete. For a transient registry, indices are
// only ever freed in bulk by cycleFrames, so dispose here just
// marks the slot as no longer active without releasing it.
func (r *registry[D]) dispose(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, slot := r.slot(index)
	if c.meta[slot].state&stateDisposePending != 0 {
		panic("fgraph: registry: double dispose")
	}
	c.meta[slot].state |= stateDisposePending
	if !r.persistent {
		return
	}
	wait := c.meta[slot].writeWait
	if c.meta[slot].readWait > wait {
		wait = c.meta[slot].readWait
	}
	heap.Push(&r.disposeQ, disposeEntry{index: index, wait: wait})
}

func (r *registry[D]) drainDisposeLocked(current uint64) {
	for r.disposeQ.Len() > 0 && r.disposeQ[0].wait <= current {
		e := heap.Pop(&r.disposeQ).(disposeEntry)
		r.free.Unset(int(e.index))
	}
}

// DrainDispose is the exported safe-point hook, also called at
// frame boundaries by the executor.
func (r *registry[D]) DrainDispose(current uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainDisposeLocked(current)
}

// cycleFrames atomically frees every transient slot.
func (r *registry[D]) cycleFrames() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistent {
		panic("fgraph: registry: cycleFrames called on persistent registry")
	}
	r.free.Clear()
}

func (r *registry[D]) descriptorAt(index uint32) *D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, slot := r.slot(index)
	return &c.descriptor[slot]
}

func (r *registry[D]) metaAt(index uint32) *resMeta {
	c, slot := r.slot(index)
	return &c.meta[slot]
}

func (r *registry[D]) label(index uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaAt(index).label
}

func (r *registry[D]) setLabel(index uint32, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaAt(index).label = label
}

func (r *registry[D]) isInitialised(index uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaAt(index).state&stateInitialised != 0
}

func (r *registry[D]) setInitialised(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaAt(index).state |= stateInitialised
}

func (r *registry[D]) waitFrames(index uint32) (read, write uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.metaAt(index)
	return m.readWait, m.writeWait
}

func (r *registry[D]) stampRead(index uint32, frame uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaAt(index).readWait = frame
}

func (r *registry[D]) stampWrite(index uint32, frame uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaAt(index).writeWait = frame
}

func (r *registry[D]) base(index uint32) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metaAt(index).base
}

func (r *registry[D]) setBase(index uint32, base Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaAt(index).base = base
}

// appendUsage links a new usage record onto index's usage list,
// allocating the node from a.
func (r *registry[D]) appendUsage(index uint32, a *arena, u Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metaAt(index)
	id := a.alloc(u)
	if m.usageHead < 0 {
		m.usageHead = id
	} else {
		a.get(m.usageTail).next = id
	}
	m.usageTail = id
}

// usages returns index's usage list in declaration order.
func (r *registry[D]) usages(index uint32, a *arena) []*Usage {
	r.mu.RLock()
	head := r.metaAt(index).usageHead
	r.mu.RUnlock()
	var out []*Usage
	for head >= 0 {
		u := a.get(head)
		out = append(out, u)
		head = u.next
	}
	return out
}

// resetUsageList clears index's usage-list pointers. It is
// called by FrameGraph.resetPersistentUsageLists at the start of
// each frame, for every persistent resource touched in the
// previous one; transient slots get fresh pointers from
// allocate instead.
func (r *registry[D]) resetUsageList(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metaAt(index)
	m.usageHead = -1
	m.usageTail = -1
}

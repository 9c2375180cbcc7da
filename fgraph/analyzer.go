// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"sync/atomic"

	"github.com/gviegas/fgraph/driver"
)

// eventPairSeq hands out unique identifiers linking a
// cross-queue signal scheduledDep to its matching wait
// scheduledDep, so the compiler can create one driver.Event per
// pair instead of one per side.
var eventPairSeq atomic.Int64

// depKind tags the shape of one scheduled dependency.
type depKind int

const (
	depSubpass depKind = iota
	depBarrier
	depSignalWait
)

// depOrder says whether a scheduledDep attaches before or after
// the command it targets; sorting by (commandIndex, depOrder)
// with depBefore < depAfter gives the compacted command stream
// its final "(commandIndex, order)" ordering.
type depOrder int

const (
	depBefore depOrder = iota
	depAfter
)

type barrierDep struct {
	syncBefore, syncAfter     driver.Sync
	accessBefore, accessAfter driver.Access
	isTexture                 bool
	texture                   Handle
	layoutBefore, layoutAfter driver.Layout
}

type subpassDep struct {
	renderPassID              int
	src, dst                  int
	syncBefore, syncAfter     driver.Sync
	accessBefore, accessAfter driver.Access
}

type eventDep struct {
	syncBefore, syncAfter driver.Sync
	barrier               barrierDep
	hasBarrier            bool
}

// scheduledDep is one dependency emitted by the analyzer,
// anchored to a global command index and ordered relative to
// other dependencies at that same index.
type scheduledDep struct {
	commandIndex int
	order        depOrder
	kind         depKind
	barrier      barrierDep
	subpass      subpassDep
	signal       eventDep // valid when kind == depSignalWait
	pairID       int64    // links a signal to its matching wait
}

// usageFlagsFor maps an access type to the union of backend
// usage flags a resource materialized for that access needs.
func usageFlagsFor(a AccessType) driver.Usage {
	switch a {
	case AccessRead:
		return driver.UShaderRead
	case AccessWrite:
		return driver.UShaderWrite
	case AccessReadWrite:
		return driver.UShaderRead | driver.UShaderWrite
	case AccessConstantBuffer:
		return driver.UShaderConst
	case AccessVertexBuffer:
		return driver.UVertexData
	case AccessIndexBuffer:
		return driver.UIndexData
	case AccessSampler:
		return driver.UShaderSample
	case AccessReadWriteRenderTarget, AccessWriteOnlyRenderTarget,
		AccessInputAttachmentRenderTarget, AccessUnusedRenderTarget:
		return driver.URenderTarget
	default:
		return driver.UGeneric
	}
}

// analyzePair applies the pairwise dependency rule to two
// consecutive active usages u1 < u2 of the same resource.
// isTexture/tex/isDS select the texture-only layout
// computation; descriptor-set compatibility is a separate,
// unrelated concern and plays no part in this signature —
// layouts and access masks are the only cross-cutting inputs
// the rule needs.
func analyzePair(u1, u2 *Usage, isTexture bool, tex Handle, isDS bool) []scheduledDep {
	if !u1.Access.IsWrite() && !u2.Access.IsWrite() {
		return nil
	}
	sameRenderPass := u1.Pass.renderPassID >= 0 && u1.Pass.renderPassID == u2.Pass.renderPassID
	if sameRenderPass && u1.Access.IsRenderTarget() && u2.Access.IsRenderTarget() &&
		u1.Pass.subpassIndex == u2.Pass.subpassIndex {
		return nil
	}
	if u1.CPUBeforeRender || u2.CPUBeforeRender {
		return nil
	}

	srcAccess := accessInfo(u1.Access)
	dstAccess := accessInfo(u2.Access)
	srcSync := syncFor(u1.Access, u1.Stages, isDS)
	dstSync := syncFor(u2.Access, u2.Stages, isDS)

	if u1.Access.IsWrite() && u2.Access.IsWrite() && srcAccess == dstAccess && u1.Stages == u2.Stages {
		return nil
	}

	srcLayout := layoutFor(u1.Access, isDS)
	dstLayout := layoutFor(u2.Access, isDS)

	var out []scheduledDep

	// Step 5: texture-view/render-pass initial/final layout
	// attribution, independent of where the barrier itself lives.
	if isTexture {
		u1RT, u2RT := u1.Access.IsRenderTarget(), u2.Access.IsRenderTarget()
		if u2RT && u2.Pass.renderPassID != u1.Pass.renderPassID {
			if u2.Pass.initialLayouts == nil {
				u2.Pass.initialLayouts = map[Handle]driver.Layout{}
			}
			u2.Pass.initialLayouts[tex] = srcLayout
		}
		if u1RT && u1.Pass.renderPassID != u2.Pass.renderPassID {
			if u1.Pass.finalLayouts == nil {
				u1.Pass.finalLayouts = map[Handle]driver.Layout{}
			}
			u1.Pass.finalLayouts[tex] = dstLayout
		}
	}

	switch {
	case sameRenderPass:
		out = append(out, scheduledDep{
			commandIndex: u2.Pass.commands.Start,
			order:        depBefore,
			kind:         depSubpass,
			subpass: subpassDep{
				renderPassID: u1.Pass.renderPassID,
				src:          u1.Pass.subpassIndex, dst: u2.Pass.subpassIndex,
				syncBefore: srcSync, syncAfter: dstSync,
				accessBefore: srcAccess, accessAfter: dstAccess,
			},
		})
		if u1.Pass.subpassIndex == u2.Pass.subpassIndex {
			b := barrierDep{syncBefore: srcSync, syncAfter: dstSync, accessBefore: srcAccess, accessAfter: dstAccess}
			if isTexture {
				b.isTexture, b.texture = true, tex
				b.layoutBefore, b.layoutAfter = driver.LCommon, driver.LCommon
			}
			out = append(out, scheduledDep{commandIndex: u2.Pass.commands.Start, order: depBefore, kind: depBarrier, barrier: b})
		}

	case u1.Pass.Queue != u2.Pass.Queue:
		pid := eventPairSeq.Add(1)
		signal := eventDep{syncBefore: srcSync, syncAfter: srcSync}
		out = append(out, scheduledDep{
			commandIndex: u1.Pass.commands.End - 1, order: depAfter, kind: depSignalWait, signal: signal, pairID: pid,
		})
		wait := eventDep{syncBefore: dstSync, syncAfter: dstSync}
		wait.hasBarrier = true
		wait.barrier = barrierDep{syncBefore: srcSync, syncAfter: dstSync, accessBefore: srcAccess, accessAfter: dstAccess}
		if isTexture {
			wait.barrier.isTexture, wait.barrier.texture = true, tex
			wait.barrier.layoutBefore, wait.barrier.layoutAfter = srcLayout, dstLayout
		}
		out = append(out, scheduledDep{
			commandIndex: u2.Pass.commands.Start, order: depBefore, kind: depSignalWait, signal: wait, pairID: pid,
		})

	default:
		b := barrierDep{syncBefore: srcSync, syncAfter: dstSync, accessBefore: srcAccess, accessAfter: dstAccess}
		if isTexture {
			b.isTexture, b.texture = true, tex
			b.layoutBefore, b.layoutAfter = srcLayout, dstLayout
		}
		var idx int
		switch {
		case u1.Pass.renderPassID < 0 && u2.Pass.renderPassID >= 0:
			idx = u2.Pass.commands.Start
		case u1.Pass.renderPassID >= 0 && u2.Pass.renderPassID < 0:
			idx = u1.Pass.commands.End - 1
		default:
			idx = u2.Pass.commands.Start
		}
		out = append(out, scheduledDep{commandIndex: idx, order: depBefore, kind: depBarrier, barrier: b})
	}

	return out
}

// analyzeUsageList walks a resource's usage list pairwise,
// skipping non-active passes, and collects every scheduledDep
// the pairwise rule produces.
func analyzeUsageList(usages []*Usage, isTexture bool, tex Handle, isDS bool) []scheduledDep {
	var out []scheduledDep
	var prev *Usage
	for _, u := range usages {
		if !u.Pass.active {
			continue
		}
		if prev != nil {
			out = append(out, analyzePair(prev, u, isTexture, tex, isDS)...)
		}
		prev = u
	}
	return out
}

// materializeBuffer allocates backing storage for a transient
// buffer at its first active usage this frame, unioning usage
// flags across every recorded usage, then runs any deferred
// slice actions.
func materializeBuffer(g *FrameGraph, b Buffer) error {
	if b.h.HasFlag(FPersistent) {
		return nil
	}
	d := b.desc()
	if d.Backend != nil {
		return nil
	}
	usages := b.registry().usages(handleIndex(b.h), &g.arena)
	var usage driver.Usage
	for _, u := range usages {
		usage |= usageFlagsFor(u.Access)
	}
	backend, err := g.gpu.NewBuffer(d.Size, true, usage)
	if err != nil {
		logger.Warn("buffer allocation failed", "label", b.Label(), "err", err)
		return ErrAllocFailed
	}
	d.Backend = backend
	return b.runDeferredSlices()
}

// materializeTexture allocates backing storage for a transient
// texture at its first active usage this frame.
func materializeTexture(g *FrameGraph, t Texture) error {
	if t.h.HasFlag(FPersistent) || t.h.HasFlag(FResourceView) {
		return nil
	}
	d := t.desc()
	if d.Backend != nil {
		return nil
	}
	usages := t.registry().usages(handleIndex(t.h), &g.arena)
	var usage driver.Usage
	for _, u := range usages {
		usage |= usageFlagsFor(u.Access)
	}
	backend, err := g.gpu.NewImage(d.PixelFmt, d.Dim, d.Layers, d.Levels, d.Samples, usage)
	if err != nil {
		logger.Warn("texture allocation failed", "label", t.Label(), "err", err)
		return ErrAllocFailed
	}
	d.Backend = backend
	return nil
}

// stampWaitFrames records, for every persistent resource
// touched this frame, that it was read and/or written on
// currentFrame.
func stampWaitFrames[D any](reg *registry[D], index uint32, wroteThisFrame, readThisFrame bool, frame uint64) {
	if wroteThisFrame {
		reg.stampWrite(index, frame)
	}
	if readThisFrame {
		reg.stampRead(index, frame)
	}
}

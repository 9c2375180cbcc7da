// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"sort"

	"github.com/gviegas/fgraph/driver"
)

// encoderInfo groups the consecutive passes that share one
// backend command buffer / render pass. Draw passes are fused
// into one renderPassID (subpass merging) when their render
// targets are compatible; every other pass kind gets one
// encoder per pass.
type encoderInfo struct {
	kind         PassKind
	queue        driver.QueueID
	passes       []*PassRecord
	renderTarget *RenderTargetDesc // set for PassDraw groups
}

// cmdBufInfo is one command buffer's worth of encoders, split
// whenever the (queue, external/window-touching) pair changes.
type cmdBufInfo struct {
	queue    driver.QueueID
	encoders []int // indices into FrameCommandInfo.encoders
}

// FrameCommandInfo is the compiler's output for one frame:
// active passes partitioned into encoders and command buffers,
// with global command indices assigned so the analyzer's
// scheduledDeps can be interleaved at the right point during
// execution.
type FrameCommandInfo struct {
	passes  []*PassRecord
	encoders []encoderInfo
	cmdBufs []cmdBufInfo
	cache   driver.CmdCache

	// beforeCommands[i]/afterCommands[i] are compacted resource
	// commands the executor must replay immediately before/after
	// running the op at global command index i.
	beforeCommands map[int][]driver.Command
	afterCommands  map[int][]driver.Command
	totalCmds      int
}

func touchesWindow(p *PassRecord) bool {
	if p.RenderTarget == nil {
		return false
	}
	for _, c := range p.RenderTarget.Color {
		if c.Texture.IsValid() && c.Texture.Handle().HasFlag(FWindowHandle) {
			return true
		}
	}
	return false
}

// compileFrame partitions the frame's recorded passes into
// encoders and command buffers, assigns global command indices,
// runs the dependency analyzer over every touched resource, and
// compacts the result into a driver.CmdCache-backed command
// stream.
func compileFrame(g *FrameGraph) (*FrameCommandInfo, []scheduledDep, error) {
	info := &FrameCommandInfo{passes: g.passes}

	// Materialize transient resources and mark every recorded
	// pass active before analysis runs, since analyzeUsageList
	// skips inactive passes.
	for h := range g.touchedBuffers {
		b := Buffer{g: g, h: h}
		if err := materializeBuffer(g, b); err != nil {
			return nil, nil, err
		}
	}
	for h := range g.touchedTextures {
		t := Texture{g: g, h: h}
		if err := materializeTexture(g, t); err != nil {
			return nil, nil, err
		}
	}
	for _, p := range g.passes {
		p.active = g.activeBits.IsSet(p.slot)
	}

	// Partition into encoders: consecutive draw passes with
	// compatible render targets are fused into one renderPassID;
	// every other pass kind stands alone.
	renderPassID := 0
	for i := 0; i < len(g.passes); {
		p := g.passes[i]
		if p.Kind != PassDraw {
			info.encoders = append(info.encoders, encoderInfo{kind: p.Kind, queue: p.Queue, passes: []*PassRecord{p}})
			p.encoderIndex = len(info.encoders) - 1
			p.renderPassID = -1
			i++
			continue
		}
		group := []*PassRecord{p}
		p.renderPassID = renderPassID
		p.subpassIndex = 0
		j := i + 1
		for j < len(g.passes) {
			q := g.passes[j]
			if q.Kind != PassDraw || q.Queue != p.Queue || !p.RenderTarget.compatible(q.RenderTarget) {
				break
			}
			q.renderPassID = renderPassID
			q.subpassIndex = len(group)
			group = append(group, q)
			j++
		}
		info.encoders = append(info.encoders, encoderInfo{kind: PassDraw, queue: p.Queue, passes: group, renderTarget: p.RenderTarget})
		idx := len(info.encoders) - 1
		for _, gp := range group {
			gp.encoderIndex = idx
		}
		renderPassID++
		i = j
	}

	// Partition encoders into command buffers: a new buffer
	// starts whenever the queue changes or an encoder's
	// (isExternal, usesWindowTexture) pair differs from the
	// previous encoder's, since window-backed resources may
	// require presentation synchronization the executor handles
	// at command-buffer granularity. usesWindowTexture is
	// evaluated for every encoder, not just external ones: a
	// PassDraw writing the swapchain image needs the same
	// command-buffer boundary as an external pass would.
	var curQueue driver.QueueID
	var curExternal, curTouchesWindow bool
	haveCur := false
	for i, enc := range info.encoders {
		isExternal := enc.kind == PassExternal
		touchesWin := false
		for _, p := range enc.passes {
			if touchesWindow(p) {
				touchesWin = true
				break
			}
		}
		if !haveCur || enc.queue != curQueue || isExternal != curExternal || touchesWin != curTouchesWindow {
			info.cmdBufs = append(info.cmdBufs, cmdBufInfo{queue: enc.queue})
			curQueue = enc.queue
			haveCur = true
		}
		curExternal, curTouchesWindow = isExternal, touchesWin
		last := &info.cmdBufs[len(info.cmdBufs)-1]
		last.encoders = append(last.encoders, i)
	}

	// Assign a contiguous global command index to every recorded
	// op, in encoder (and therefore command-buffer) order.
	idx := 0
	for _, enc := range info.encoders {
		for _, p := range enc.passes {
			p.commands = CommandRange{Start: idx, End: idx + len(p.ops)}
			idx += len(p.ops)
			if len(p.ops) == 0 {
				// Ensure passes with no recorded ops (pure barrier
				// anchors, e.g. PassCPU) still occupy one command
				// slot the analyzer can anchor a dependency to.
				p.commands.End = p.commands.Start + 1
				idx++
			}
		}
	}
	info.totalCmds = idx

	// Run the dependency analyzer over every touched resource.
	var deps []scheduledDep
	for h := range g.touchedBuffers {
		b := Buffer{g: g, h: h}
		usages := b.registry().usages(handleIndex(h), &g.arena)
		deps = append(deps, analyzeUsageList(usages, false, h, false)...)
	}
	for h := range g.touchedTextures {
		t := Texture{g: g, h: h}
		usages := t.registry().usages(handleIndex(h), &g.arena)
		deps = append(deps, analyzeUsageList(usages, true, h, t.IsDepthStencil())...)
	}

	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].commandIndex != deps[j].commandIndex {
			return deps[i].commandIndex < deps[j].commandIndex
		}
		return deps[i].order < deps[j].order
	})

	compactDeps(g, info, deps)

	// Stamp persistent-resource wait frames for this frame's
	// touched set.
	for h := range g.touchedBuffers {
		if !h.HasFlag(FPersistent) {
			continue
		}
		stampWaitFramesForUsages(g.persistentBuffers, handleIndex(h), &g.arena, g.frameNum)
	}
	for h := range g.touchedTextures {
		if !h.HasFlag(FPersistent) {
			continue
		}
		stampWaitFramesForUsages(g.persistentTextures, handleIndex(h), &g.arena, g.frameNum)
	}

	return info, deps, nil
}

func stampWaitFramesForUsages[D any](reg *registry[D], index uint32, a *arena, frame uint64) {
	usages := reg.usages(index, a)
	var wrote, read bool
	for _, u := range usages {
		if u.Access.IsWrite() {
			wrote = true
		} else {
			read = true
		}
	}
	stampWaitFrames(reg, index, wrote, read, frame)
}

// compactDeps groups the sorted scheduledDeps by commandIndex
// into driver.Command/driver.CmdCache entries, storing
// the resulting per-index command lists on info.beforeCommands/
// afterCommands so the executor can splice them into the
// recorded op stream on either side of the op they target.
func compactDeps(g *FrameGraph, info *FrameCommandInfo, deps []scheduledDep) {
	info.beforeCommands = make(map[int][]driver.Command)
	info.afterCommands = make(map[int][]driver.Command)
	events := make(map[int64]driver.Event)
	for _, d := range deps {
		var cmd driver.Command
		switch d.kind {
		case depBarrier:
			cmd = driver.Command{Type: driver.CBarrier, Index: len(info.cache.Barriers)}
			entry := struct {
				Global []driver.Barrier
				Image  []driver.Transition
			}{}
			if d.barrier.isTexture {
				entry.Image = []driver.Transition{{
					Barrier: driver.Barrier{
						SyncBefore: d.barrier.syncBefore, SyncAfter: d.barrier.syncAfter,
						AccessBefore: d.barrier.accessBefore, AccessAfter: d.barrier.accessAfter,
					},
					LayoutBefore: d.barrier.layoutBefore, LayoutAfter: d.barrier.layoutAfter,
				}}
			} else {
				entry.Global = []driver.Barrier{{
					SyncBefore: d.barrier.syncBefore, SyncAfter: d.barrier.syncAfter,
					AccessBefore: d.barrier.accessBefore, AccessAfter: d.barrier.accessAfter,
				}}
			}
			info.cache.Barriers = append(info.cache.Barriers, entry)

		case depSignalWait:
			if !d.signal.hasBarrier {
				ev, err := g.gpu.NewEvent()
				if err != nil {
					logger.Warn("event creation failed", "err", err)
					continue
				}
				events[d.pairID] = ev
				cmd = driver.Command{Type: driver.CSignalEvent, Index: len(info.cache.Signals)}
				info.cache.Signals = append(info.cache.Signals, struct {
					Event driver.Event
					After driver.Sync
				}{Event: ev, After: d.signal.syncBefore})
			} else {
				ev, ok := events[d.pairID]
				if !ok {
					logger.Warn("wait for event with no matching signal", "pairID", d.pairID)
					continue
				}
				cmd = driver.Command{Type: driver.CWaitEvents, Index: len(info.cache.Waits)}
				w := struct {
					Events  []driver.Event
					Before  driver.Sync
					Barrier []driver.Barrier
					Image   []driver.Transition
				}{Events: []driver.Event{ev}, Before: d.signal.syncBefore}
				b := d.signal.barrier
				if b.isTexture {
					w.Image = []driver.Transition{{
						Barrier: driver.Barrier{
							SyncBefore: b.syncBefore, SyncAfter: b.syncAfter,
							AccessBefore: b.accessBefore, AccessAfter: b.accessAfter,
						},
						LayoutBefore: b.layoutBefore, LayoutAfter: b.layoutAfter,
					}}
				} else {
					w.Barrier = []driver.Barrier{{
						SyncBefore: b.syncBefore, SyncAfter: b.syncAfter,
						AccessBefore: b.accessBefore, AccessAfter: b.accessAfter,
					}}
				}
				info.cache.Waits = append(info.cache.Waits, w)
			}

		case depSubpass:
			// Subpass transitions are expressed through the
			// render pass's own Subpass.Wait/attachment
			// configuration at NewRenderPass time, not through the
			// compacted command stream, so nothing is emitted here.
			continue
		}
		if d.order == depAfter {
			info.afterCommands[d.commandIndex] = append(info.afterCommands[d.commandIndex], cmd)
		} else {
			info.beforeCommands[d.commandIndex] = append(info.beforeCommands[d.commandIndex], cmd)
		}
	}
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"context"
	"fmt"

	"github.com/gviegas/fgraph/driver"
)

// viewFor returns the image view a render target attachment or
// blit command should bind, creating a whole-resource default
// view for a base texture the first time it is needed (a
// texture view created through Texture.NewView already carries
// its own driver.ImageView).
func viewFor(t Texture) (driver.ImageView, error) {
	d := t.desc()
	if d.View != nil {
		return d.View, nil
	}
	if d.Backend == nil {
		fatalf("fgraph: viewFor: texture %q not materialized", t.Label())
	}
	typ := driver.IView2D
	switch {
	case d.Samples > 1 && d.Layers > 1:
		typ = driver.IView2DMSArray
	case d.Samples > 1:
		typ = driver.IView2DMS
	case d.Layers > 1:
		typ = driver.IView2DArray
	}
	iv, err := d.Backend.NewView(typ, 0, d.Layers, 0, d.Levels)
	if err != nil {
		return nil, wrapBackendErr(err)
	}
	d.View = iv
	return iv, nil
}

// renderPassNoDS is the Subpass.DS sentinel for a subpass with
// no depth/stencil attachment.
const renderPassNoDS = -1

// attachmentLayouts scans every subpass in the fused group for
// the initial/final layout the dependency analyzer attributed to
// tex crossing this render pass's boundary (PassRecord.
// initialLayouts/finalLayouts), so buildRenderPass can express
// the transition on the render pass itself instead of a separate
// barrier. Neither map is populated for a texture that starts or
// ends its life entirely inside the render pass, so the zero
// value (driver.LUndefined) is the correct "nothing to
// transition" answer in that case.
func attachmentLayouts(passes []*PassRecord, tex Handle) (initial, final driver.Layout) {
	for _, p := range passes {
		if l, ok := p.initialLayouts[tex]; ok {
			initial = l
		}
		if l, ok := p.finalLayouts[tex]; ok {
			final = l
		}
	}
	return
}

// buildRenderPass materializes the backend RenderPass and
// Framebuf for one fused group of draw passes sharing a
// RenderTargetDesc, plus the clear
// values BeginPass needs.
func buildRenderPass(g *FrameGraph, enc encoderInfo) (driver.RenderPass, driver.Framebuf, []driver.ClearValue, error) {
	rt := enc.renderTarget
	var atts []driver.Attachment
	var views []driver.ImageView
	var clears []driver.ClearValue
	var width, height, layers int

	for _, c := range rt.Color {
		iv, err := viewFor(c.Texture)
		if err != nil {
			return nil, nil, nil, err
		}
		d := c.Texture.desc()
		initial, final := attachmentLayouts(enc.passes, c.Texture.Handle())
		atts = append(atts, driver.Attachment{
			Format: d.PixelFmt, Samples: d.Samples,
			Load: [2]driver.LoadOp{c.Load, driver.LDontCare}, Store: [2]driver.StoreOp{c.Store, driver.SDontCare},
			InitialLayout: initial, FinalLayout: final,
		})
		views = append(views, iv)
		clears = append(clears, c.Clear)
		width, height, layers = d.Dim.Width, d.Dim.Height, d.Layers
	}
	dsIndex := renderPassNoDS
	if rt.Depth != nil {
		iv, err := viewFor(rt.Depth.Texture)
		if err != nil {
			return nil, nil, nil, err
		}
		d := rt.Depth.Texture.desc()
		initial, final := attachmentLayouts(enc.passes, rt.Depth.Texture.Handle())
		atts = append(atts, driver.Attachment{
			Format: d.PixelFmt, Samples: d.Samples,
			Load:  [2]driver.LoadOp{rt.Depth.LoadDepth, rt.Depth.LoadStencil},
			Store: [2]driver.StoreOp{rt.Depth.StoreDepth, rt.Depth.StoreStencil},
			InitialLayout: initial, FinalLayout: final,
		})
		views = append(views, iv)
		clears = append(clears, rt.Depth.Clear)
		dsIndex = len(atts) - 1
		if width == 0 {
			width, height, layers = d.Dim.Width, d.Dim.Height, d.Layers
		}
	}

	colorIdx := make([]int, len(rt.Color))
	for i := range colorIdx {
		colorIdx[i] = i
	}
	subs := make([]driver.Subpass, len(enc.passes))
	for i := range enc.passes {
		subs[i] = driver.Subpass{Color: colorIdx, DS: dsIndex, Wait: i > 0}
	}

	rp, err := g.gpu.NewRenderPass(atts, subs)
	if err != nil {
		return nil, nil, nil, wrapBackendErr(err)
	}
	fb, err := rp.NewFB(views, width, height, layers)
	if err != nil {
		rp.Destroy()
		return nil, nil, nil, wrapBackendErr(err)
	}
	return rp, fb, clears, nil
}

// replayRange runs the compacted before/after resource commands
// and the pass's own recorded ops for p's command-index range,
// in the order the dependency analyzer scheduled them.
func replayRange(cb driver.CmdBuffer, info *FrameCommandInfo, p *PassRecord) error {
	for i := p.commands.Start; i < p.commands.End; i++ {
		if cmds := info.beforeCommands[i]; len(cmds) > 0 {
			if err := cb.Record(cmds, &info.cache); err != nil {
				return wrapBackendErr(err)
			}
		}
		if j := i - p.commands.Start; j < len(p.ops) {
			p.ops[j](cb)
		}
		if cmds := info.afterCommands[i]; len(cmds) > 0 {
			if err := cb.Record(cmds, &info.cache); err != nil {
				return wrapBackendErr(err)
			}
		}
	}
	return nil
}

// replayEncoder records one encoder group's commands into cb,
// wrapping them in the Begin*/End* block their pass kind
// requires. Any driver.RenderPass/Framebuf it creates for
// a draw group is appended to *destroy, since neither may be
// destroyed until the command buffer that references them has
// finished executing on the GPU — recording completes long
// before that.
func replayEncoder(g *FrameGraph, cb driver.CmdBuffer, info *FrameCommandInfo, enc encoderInfo, destroy *[]driver.Destroyer) error {
	switch enc.kind {
	case PassDraw:
		rp, fb, clears, err := buildRenderPass(g, enc)
		if err != nil {
			return err
		}
		*destroy = append(*destroy, fb, rp)
		cb.BeginPass(rp, fb, clears)
		for i, p := range enc.passes {
			if i > 0 {
				cb.NextSubpass()
			}
			if err := replayRange(cb, info, p); err != nil {
				cb.EndPass()
				return err
			}
		}
		cb.EndPass()

	case PassCompute:
		p := enc.passes[0]
		cb.BeginWork(true)
		err := replayRange(cb, info, p)
		cb.EndWork()
		if err != nil {
			return err
		}

	case PassBlit:
		p := enc.passes[0]
		cb.BeginBlit(true)
		err := replayRange(cb, info, p)
		cb.EndBlit()
		if err != nil {
			return err
		}

	case PassExternal, PassCPU:
		if err := replayRange(cb, info, enc.passes[0]); err != nil {
			return err
		}
	}
	return nil
}

// submission tracks one committed command buffer awaiting
// completion.
type submission struct {
	queue driver.QueueID
	ch    chan *driver.WorkItem
}

// execute records every encoder into its assigned command
// buffer, submits each command buffer for its queue, and
// launches a goroutine that fires the frame's registered
// CompletionCallbacks, cycles transient registries, drains
// persistent dispose queues, and releases the inflight-frame
// semaphore once every command buffer this frame has completed.
// FrameCompletion only advances if every submission this frame
// succeeded; a failed submission is instead reported through the
// callback's error argument, so a CPU wait gated on frame
// completion never proceeds against work the GPU never finished.
//
// An empty pass list produces zero command buffers: the
// completion goroutine still runs, still fires callbacks with a
// nil error, and still advances FrameCompletion, so calling
// Execute on an empty frame is idempotent with respect to frame
// bookkeeping.
func execute(ctx context.Context, g *FrameGraph, info *FrameCommandInfo, deps []scheduledDep) error {
	var subs []submission
	var destroy []driver.Destroyer
	for _, cbInfo := range info.cmdBufs {
		cb, err := g.gpu.NewCmdBuffer(cbInfo.queue)
		if err != nil {
			return wrapBackendErr(err)
		}
		if err := cb.Begin(); err != nil {
			return wrapBackendErr(err)
		}
		for _, ei := range cbInfo.encoders {
			if err := replayEncoder(g, cb, info, info.encoders[ei], &destroy); err != nil {
				return err
			}
		}
		if err := cb.End(); err != nil {
			return wrapBackendErr(err)
		}
		ch := make(chan *driver.WorkItem, 1)
		wk := &driver.WorkItem{Queue: cbInfo.queue, Work: []driver.CmdBuffer{cb}}
		if err := g.gpu.Commit(wk, ch); err != nil {
			return wrapBackendErr(err)
		}
		if q := g.Queue(cbInfo.queue); q != nil {
			q.NextCmdBufIndex()
		}
		subs = append(subs, submission{queue: cbInfo.queue, ch: ch})
	}

	frame := g.frameNum
	go func() {
		var submitErr error
		for _, s := range subs {
			done := <-s.ch
			if q := g.Queue(s.queue); q != nil {
				q.Advance()
			}
			if done.Err != nil {
				// Submission failure is surfaced to the log and to
				// the frame's completion callbacks, not propagated
				// as a panic, so the pipeline never wedges.
				logger.Error("command buffer submission failed", "queue", s.queue, "err", done.Err)
				if submitErr == nil {
					submitErr = wrapBackendErr(fmt.Errorf("%w: %w", ErrSubmitFailed, done.Err))
				}
			}
		}
		for _, d := range destroy {
			d.Destroy()
		}
		g.transientBuffers.cycleFrames()
		g.transientTextures.cycleFrames()
		g.transientArgBufs.cycleFrames()
		g.transientArgArrays.cycleFrames()
		if submitErr == nil {
			g.fc.Advance(frame)
		}
		g.persistentBuffers.DrainDispose(g.fc.Current())
		g.persistentTextures.DrainDispose(g.fc.Current())
		g.fireCompletion(frame, submitErr)
		g.inflight.Release(1)
	}()

	return nil
}

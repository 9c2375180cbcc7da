// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"github.com/gviegas/fgraph/driver"
)

// fakeBuffer is an in-memory driver.Buffer, always host visible.
type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Destroy()          {}
func (b *fakeBuffer) Visible() bool     { return true }
func (b *fakeBuffer) Bytes() []byte     { return b.data }
func (b *fakeBuffer) Cap() int64        { return int64(len(b.data)) }

// fakeImageView is a no-op driver.ImageView.
type fakeImageView struct{}

func (v *fakeImageView) Destroy() {}

// fakeImage is a driver.Image that hands out fakeImageViews.
type fakeImage struct{}

func (i *fakeImage) Destroy() {}
func (i *fakeImage) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	return &fakeImageView{}, nil
}

// fakeFramebuf is a no-op driver.Framebuf.
type fakeFramebuf struct{}

func (f *fakeFramebuf) Destroy() {}

// fakeRenderPass is a driver.RenderPass that hands out fakeFramebufs.
type fakeRenderPass struct{}

func (p *fakeRenderPass) Destroy() {}
func (p *fakeRenderPass) NewFB(iv []driver.ImageView, width, height, layers int) (driver.Framebuf, error) {
	return &fakeFramebuf{}, nil
}

// fakeEvent is a no-op driver.Event.
type fakeEvent struct{}

func (e *fakeEvent) Destroy() {}

// fakeTimeline is a driver.Timeline that tracks its value directly,
// since the fake GPU never runs anything asynchronously.
type fakeTimeline struct{ value uint64 }

func (t *fakeTimeline) Destroy()                { }
func (t *fakeTimeline) Signal(value uint64) error { t.value = value; return nil }
func (t *fakeTimeline) Wait(value uint64) error   { return nil }
func (t *fakeTimeline) Value() (uint64, error)    { return t.value, nil }

// fakeDescHeap/fakeDescTable/fakePipeline/fakeSampler/fakeShaderCode
// round out the resource interfaces the fake GPU needs to create,
// none of which fgraph's own logic inspects beyond identity.
type fakeDescHeap struct{ n int }

func (h *fakeDescHeap) Destroy()                                                       {}
func (h *fakeDescHeap) New(n int) error                                                { h.n = n; return nil }
func (h *fakeDescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {}
func (h *fakeDescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)              {}
func (h *fakeDescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler)            {}
func (h *fakeDescHeap) Count() int                                                     { return h.n }

type fakeDescTable struct{}

func (t *fakeDescTable) Destroy() {}

type fakePipeline struct{}

func (p *fakePipeline) Destroy() {}

type fakeSampler struct{}

func (s *fakeSampler) Destroy() {}

type fakeShaderCode struct{}

func (s *fakeShaderCode) Destroy() {}

// fakeCmdBuffer keeps the compacted commands passed to Record and
// tracks recording and compute-work state, enough for the
// executor's Begin/End/IsRecording discipline to hold.
type fakeCmdBuffer struct {
	recording bool
	inWork    bool
	recorded  []driver.Command
}

func (c *fakeCmdBuffer) Destroy() {}

func (c *fakeCmdBuffer) Begin() error {
	c.recording = true
	return nil
}

func (c *fakeCmdBuffer) BeginPass(pass driver.RenderPass, fb driver.Framebuf, clear []driver.ClearValue) {}
func (c *fakeCmdBuffer) NextSubpass()                                                                   {}
func (c *fakeCmdBuffer) EndPass()                                                                       {}
func (c *fakeCmdBuffer) BeginWork(wait bool)                                                            { c.inWork = true }
func (c *fakeCmdBuffer) EndWork()                                                                       { c.inWork = false }
func (c *fakeCmdBuffer) BeginBlit(wait bool)                                                            {}
func (c *fakeCmdBuffer) EndBlit()                                                                       {}
func (c *fakeCmdBuffer) SetPipeline(pl driver.Pipeline)                                                 {}
func (c *fakeCmdBuffer) SetViewport(vp []driver.Viewport)                                               {}
func (c *fakeCmdBuffer) SetScissor(sciss []driver.Scissor)                                              {}
func (c *fakeCmdBuffer) SetBlendColor(r, g, b, a float32)                                                {}
func (c *fakeCmdBuffer) SetStencilRef(value uint32)                                                     {}
func (c *fakeCmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64)                       {}
func (c *fakeCmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64)                {}
func (c *fakeCmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int)             {}
func (c *fakeCmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int)              {}
func (c *fakeCmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int)                               {}
func (c *fakeCmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)                 {}
func (c *fakeCmdBuffer) Dispatch(grpCountX, grpCountY, grpCountZ int)                                    {}

func (c *fakeCmdBuffer) CopyBuffer(param *driver.BufferCopy) {
	if param.From != nil && param.To != nil {
		dst := param.To.(*fakeBuffer).data[param.ToOff : param.ToOff+param.Size]
		src := param.From.(*fakeBuffer).data[param.FromOff : param.FromOff+param.Size]
		copy(dst, src)
	}
}

func (c *fakeCmdBuffer) CopyImage(param *driver.ImageCopy)         {}
func (c *fakeCmdBuffer) CopyBufToImg(param *driver.BufImgCopy)     {}
func (c *fakeCmdBuffer) CopyImgToBuf(param *driver.BufImgCopy)     {}
func (c *fakeCmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {}
func (c *fakeCmdBuffer) Barrier(b []driver.Barrier)                                {}
func (c *fakeCmdBuffer) Transition(t []driver.Transition)                         {}
func (c *fakeCmdBuffer) SignalEvent(ev driver.Event, after driver.Sync)           {}
func (c *fakeCmdBuffer) WaitEvents(ev []driver.Event, before driver.Sync, b []driver.Barrier, t []driver.Transition) {
}

func (c *fakeCmdBuffer) Record(cmd []driver.Command, cache *driver.CmdCache) error {
	c.recorded = append(c.recorded, cmd...)
	return nil
}

func (c *fakeCmdBuffer) IsRecording() bool { return c.recording }

func (c *fakeCmdBuffer) End() error {
	c.recording = false
	return nil
}

func (c *fakeCmdBuffer) Reset() error {
	c.recording = false
	c.recorded = nil
	return nil
}

// fakeGPU implements driver.GPU entirely in memory: every backend
// object is created immediately, and Commit "executes" a work item
// synchronously before signaling its completion channel, so tests
// never need a real scheduler in between.
type fakeGPU struct {
	queues     []driver.QueueID
	failCommit bool
	commits    int
	// lastAttachments is the attachment slice passed to the most
	// recent NewRenderPass call.
	lastAttachments []driver.Attachment
}

func newFakeGPU(queues ...driver.QueueID) *fakeGPU {
	if len(queues) == 0 {
		queues = []driver.QueueID{driver.QGraphics, driver.QCompute, driver.QCopy}
	}
	return &fakeGPU{queues: queues}
}

func (g *fakeGPU) Driver() driver.Driver { return nil }
func (g *fakeGPU) Queues() []driver.QueueID { return g.queues }

func (g *fakeGPU) Commit(wk *driver.WorkItem, ch chan<- *driver.WorkItem) error {
	g.commits++
	if g.failCommit {
		wk.Err = ErrSubmitFailed
	}
	ch <- wk
	return nil
}

func (g *fakeGPU) NewCmdBuffer(q driver.QueueID) (driver.CmdBuffer, error) {
	return &fakeCmdBuffer{}, nil
}

func (g *fakeGPU) NewTimeline(initial uint64) (driver.Timeline, error) {
	return &fakeTimeline{value: initial}, nil
}

func (g *fakeGPU) NewEvent() (driver.Event, error) { return &fakeEvent{}, nil }

func (g *fakeGPU) NewRenderPass(att []driver.Attachment, sub []driver.Subpass) (driver.RenderPass, error) {
	g.lastAttachments = att
	return &fakeRenderPass{}, nil
}

func (g *fakeGPU) NewShaderCode(data []byte) (driver.ShaderCode, error) { return &fakeShaderCode{}, nil }

func (g *fakeGPU) NewDescHeap(ds []driver.Descriptor) (driver.DescHeap, error) {
	return &fakeDescHeap{}, nil
}

func (g *fakeGPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	return &fakeDescTable{}, nil
}

func (g *fakeGPU) NewPipeline(state any) (driver.Pipeline, error) { return &fakePipeline{}, nil }

func (g *fakeGPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	return &fakeBuffer{data: make([]byte, size)}, nil
}

func (g *fakeGPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	return &fakeImage{}, nil
}

func (g *fakeGPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) { return &fakeSampler{}, nil }

func (g *fakeGPU) Limits() driver.Limits { return driver.Limits{} }

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import "github.com/gviegas/fgraph/driver"

// PassKind is the tagged variant of a pass.
type PassKind int

const (
	PassDraw PassKind = iota
	PassCompute
	PassBlit
	PassExternal
	PassCPU
)

// ColorAttachment describes one color render target of a draw
// pass's render-target descriptor.
type ColorAttachment struct {
	Texture      Texture
	Level, Layer int
	Load         driver.LoadOp
	Store        driver.StoreOp
	Clear        driver.ClearValue
}

// DepthStencilAttachment describes the depth/stencil render
// target of a draw pass's render-target descriptor.
type DepthStencilAttachment struct {
	Texture                  Texture
	Level, Layer             int
	LoadDepth, LoadStencil   driver.LoadOp
	StoreDepth, StoreStencil driver.StoreOp
	Clear                    driver.ClearValue
}

// RenderTargetDesc is a draw pass's attachment set. Two draw
// passes are subpass-fusion candidates when their
// RenderTargetDesc values are attachment-for-attachment
// compatible (same attachments, same load/store for every
// preserved attachment).
type RenderTargetDesc struct {
	Color []ColorAttachment
	Depth *DepthStencilAttachment
}

// compatible reports whether rt and other describe the same
// attachments with the same load/store actions, the condition
// subpass-merging rule requires.
func (rt *RenderTargetDesc) compatible(other *RenderTargetDesc) bool {
	if rt == nil || other == nil {
		return rt == other
	}
	if len(rt.Color) != len(other.Color) {
		return false
	}
	for i := range rt.Color {
		a, b := rt.Color[i], other.Color[i]
		if a.Texture.Handle() != b.Texture.Handle() || a.Level != b.Level || a.Layer != b.Layer {
			return false
		}
		if a.Load != b.Load || a.Store != b.Store {
			return false
		}
	}
	switch {
	case rt.Depth == nil && other.Depth == nil:
	case rt.Depth == nil || other.Depth == nil:
		return false
	default:
		a, b := rt.Depth, other.Depth
		if a.Texture.Handle() != b.Texture.Handle() || a.Level != b.Level || a.Layer != b.Layer {
			return false
		}
		if a.LoadDepth != b.LoadDepth || a.StoreDepth != b.StoreDepth ||
			a.LoadStencil != b.LoadStencil || a.StoreStencil != b.StoreStencil {
			return false
		}
	}
	return true
}

// recordedOp is one command captured during recording, replayed
// into a real driver.CmdBuffer once the compiler has assigned
// the owning pass to one.
type recordedOp func(cb driver.CmdBuffer)

// PassRecord is a RenderPassRecord: a pass plus its
// recorded command range and usage annotations. Passes are
// created by FrameGraph.AddPass, which runs body synchronously
// against a typed Encoder.
type PassRecord struct {
	Name         string
	Kind         PassKind
	RenderTarget *RenderTargetDesc // render pass attachments for PassDraw; the compiler reads it for every kind to detect window-backed targets
	Queue        driver.QueueID

	ops []recordedOp

	// Compiler/executor bookkeeping, filled in during Compile.
	slot           int // index into FrameGraph.activeBits for this frame
	commands       CommandRange
	active         bool
	encoderIndex   int
	renderPassID   int // group id shared by fused draw passes, -1 if none
	subpassIndex   int
	initialLayouts map[Handle]driver.Layout
	finalLayouts   map[Handle]driver.Layout
}

// Encoder is the common interface every typed encoder
// implements: recording a resource use appends a Usage to the
// tracker without itself emitting a backend command.
type Encoder interface {
	pass() *PassRecord
	graph() *FrameGraph

	// UseBuffer records that the pass accesses b with the given
	// access type and pipeline stages.
	UseBuffer(b Buffer, access AccessType, stages driver.Stage)

	// UseTexture records that the pass accesses t with the given
	// access type and pipeline stages.
	UseTexture(t Texture, access AccessType, stages driver.Stage)
}

// baseEncoder implements the bookkeeping shared by every typed
// encoder: appending recordedOps and tracking usages.
type baseEncoder struct {
	p *PassRecord
	g *FrameGraph
}

func (e *baseEncoder) pass() *PassRecord  { return e.p }
func (e *baseEncoder) graph() *FrameGraph { return e.g }

func (e *baseEncoder) append(op recordedOp) {
	e.p.ops = append(e.p.ops, op)
}

func (e *baseEncoder) trackBuffer(b Buffer, access AccessType, stages driver.Stage) {
	e.g.trackBufferUsage(b, e.p, access, stages)
}

func (e *baseEncoder) trackTexture(t Texture, access AccessType, stages driver.Stage) {
	e.g.trackTextureUsage(t, e.p, access, stages)
}

func (e *baseEncoder) UseBuffer(b Buffer, access AccessType, stages driver.Stage) {
	e.trackBuffer(b, access, stages)
}

func (e *baseEncoder) UseTexture(t Texture, access AccessType, stages driver.Stage) {
	e.trackTexture(t, access, stages)
}

// DrawEncoder records commands for a PassDraw pass.
type DrawEncoder struct{ baseEncoder }

func (e *DrawEncoder) SetPipeline(p driver.Pipeline) {
	e.append(func(cb driver.CmdBuffer) { cb.SetPipeline(p) })
}

func (e *DrawEncoder) SetViewport(vp []driver.Viewport) {
	e.append(func(cb driver.CmdBuffer) { cb.SetViewport(vp) })
}

func (e *DrawEncoder) SetScissor(sc []driver.Scissor) {
	e.append(func(cb driver.CmdBuffer) { cb.SetScissor(sc) })
}

func (e *DrawEncoder) SetVertexBuf(start int, bufs []Buffer, off []int64) {
	backend := make([]driver.Buffer, len(bufs))
	for i, b := range bufs {
		backend[i] = b.desc().Backend
		e.trackBuffer(b, AccessVertexBuffer, driver.SVertex)
	}
	e.append(func(cb driver.CmdBuffer) { cb.SetVertexBuf(start, backend, off) })
}

func (e *DrawEncoder) SetIndexBuf(format driver.IndexFmt, buf Buffer, off int64) {
	e.trackBuffer(buf, AccessIndexBuffer, driver.SVertex)
	backend := buf.desc().Backend
	e.append(func(cb driver.CmdBuffer) { cb.SetIndexBuf(format, backend, off) })
}

// SetArgumentGraph binds an ArgumentBuffer for use by the
// graphics pipeline's programmable stages, mirroring
// driver.CmdBuffer.SetDescTableGraph.
func (e *DrawEncoder) SetArgumentGraph(ab ArgumentBuffer, start int, heapCopy []int) {
	e.g.trackArgumentBufferUsage(ab, e.p)
	table := ab.desc().Backend
	e.append(func(cb driver.CmdBuffer) { cb.SetDescTableGraph(table, start, heapCopy) })
}

func (e *DrawEncoder) Draw(vertCount, instCount, baseVert, baseInst int) {
	e.append(func(cb driver.CmdBuffer) { cb.Draw(vertCount, instCount, baseVert, baseInst) })
}

func (e *DrawEncoder) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	e.append(func(cb driver.CmdBuffer) { cb.DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst) })
}

// ComputeEncoder records commands for a PassCompute pass.
type ComputeEncoder struct{ baseEncoder }

func (e *ComputeEncoder) SetPipeline(p driver.Pipeline) {
	e.append(func(cb driver.CmdBuffer) { cb.SetPipeline(p) })
}

// SetArgumentComp binds an ArgumentBuffer for use by the
// compute pipeline, mirroring driver.CmdBuffer.SetDescTableComp.
func (e *ComputeEncoder) SetArgumentComp(ab ArgumentBuffer, start int, heapCopy []int) {
	e.g.trackArgumentBufferUsage(ab, e.p)
	table := ab.desc().Backend
	e.append(func(cb driver.CmdBuffer) { cb.SetDescTableComp(table, start, heapCopy) })
}

func (e *ComputeEncoder) Dispatch(grpX, grpY, grpZ int) {
	e.append(func(cb driver.CmdBuffer) { cb.Dispatch(grpX, grpY, grpZ) })
}

// BlitEncoder records commands for a PassBlit pass.
type BlitEncoder struct{ baseEncoder }

func (e *BlitEncoder) CopyBuffer(from, to Buffer, fromOff, toOff, size int64) {
	e.trackBuffer(from, AccessBlitSource, 0)
	e.trackBuffer(to, AccessBlitDestination, 0)
	param := &driver.BufferCopy{From: from.desc().Backend, FromOff: fromOff, To: to.desc().Backend, ToOff: toOff, Size: size}
	e.append(func(cb driver.CmdBuffer) { cb.CopyBuffer(param) })
}

func (e *BlitEncoder) CopyImage(from, to Texture, fromOff, toOff driver.Off3D, fromLayer, fromLevel, toLayer, toLevel int, size driver.Dim3D, layers int) {
	e.trackTexture(from, AccessBlitSource, 0)
	e.trackTexture(to, AccessBlitDestination, 0)
	param := &driver.ImageCopy{
		From: from.desc().Backend, FromOff: fromOff, FromLayer: fromLayer, FromLevel: fromLevel,
		To: to.desc().Backend, ToOff: toOff, ToLayer: toLayer, ToLevel: toLevel,
		Size: size, Layers: layers,
	}
	e.append(func(cb driver.CmdBuffer) { cb.CopyImage(param) })
}

func (e *BlitEncoder) Fill(buf Buffer, off int64, value byte, size int64) {
	e.trackBuffer(buf, AccessBlitDestination, 0)
	backend := buf.desc().Backend
	e.append(func(cb driver.CmdBuffer) { cb.Fill(backend, off, value, size) })
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"context"
	"sync"

	"github.com/gviegas/fgraph/driver"
	"github.com/gviegas/fgraph/internal/bitm"
	"golang.org/x/sync/semaphore"
)

// CompletionCallback is invoked once every command buffer
// submitted for a frame has reported back to the executor's
// completion goroutine. err is non-nil if GPU.Commit reported a
// failed work item for any of the frame's command buffers, in
// which case FrameCompletion is not advanced for that frame:
// callers relying on frame completion for CPU access to
// persistent resources must not see a frame the backend never
// actually finished.
//
// A callback runs on the executor's internal completion
// goroutine, never on the calling goroutine, and must not block
// or call back into the FrameGraph that fired it.
type CompletionCallback func(frame uint64, err error)

// FrameGraph wires the registries, frame-completion tracker,
// pass recorder, compiler, executor and uploader into the
// single object an application holds.
type FrameGraph struct {
	cfg Config
	gpu driver.GPU

	fc       *FrameCompletion
	queues   map[driver.QueueID]*Queue
	inflight *semaphore.Weighted

	transientBuffers    *registry[BufferDesc]
	persistentBuffers   *registry[BufferDesc]
	transientTextures   *registry[TextureDesc]
	persistentTextures  *registry[TextureDesc]
	transientArgBufs    *registry[ArgumentBufferDesc]
	persistentArgBufs   *registry[ArgumentBufferDesc]
	transientArgArrays  *registry[ArgumentBufferArrayDesc]
	persistentArgArrays *registry[ArgumentBufferArrayDesc]

	arena      arena
	activeBits bitm.Bitm[uint64]

	passes          []*PassRecord
	touchedBuffers  map[Handle]struct{}
	touchedTextures map[Handle]struct{}
	touchedArgBufs  map[Handle]struct{}

	uploader *Uploader

	frameNum uint64

	completionMu  sync.Mutex
	completionCBs []CompletionCallback
}

// NewFrameGraph creates a FrameGraph over the given backend GPU,
// applying Configure to cfg.
func NewFrameGraph(gpu driver.GPU, cfg Config) *FrameGraph {
	cfg = Configure(cfg)
	g := &FrameGraph{
		cfg:      cfg,
		gpu:      gpu,
		fc:       NewFrameCompletion(),
		queues:   make(map[driver.QueueID]*Queue),
		inflight: semaphore.NewWeighted(int64(cfg.InflightFrames)),
	}
	for _, q := range gpu.Queues() {
		g.queues[q] = NewQueue(q)
	}
	g.transientBuffers = newRegistry[BufferDesc](cfg.ChunkSize, false)
	g.persistentBuffers = newRegistry[BufferDesc](cfg.ChunkSize, true)
	g.transientTextures = newRegistry[TextureDesc](cfg.ChunkSize, false)
	g.persistentTextures = newRegistry[TextureDesc](cfg.ChunkSize, true)
	g.transientArgBufs = newRegistry[ArgumentBufferDesc](cfg.ChunkSize, false)
	g.persistentArgBufs = newRegistry[ArgumentBufferDesc](cfg.ChunkSize, true)
	g.transientArgArrays = newRegistry[ArgumentBufferArrayDesc](cfg.ChunkSize, false)
	g.persistentArgArrays = newRegistry[ArgumentBufferArrayDesc](cfg.ChunkSize, true)
	g.uploader = newUploader(g, cfg.UploadBudget)
	g.resetFrameState()
	return g
}

func (g *FrameGraph) bufferRegistry(persistent bool) *registry[BufferDesc] {
	if persistent {
		return g.persistentBuffers
	}
	return g.transientBuffers
}

func (g *FrameGraph) textureRegistry(persistent bool) *registry[TextureDesc] {
	if persistent {
		return g.persistentTextures
	}
	return g.transientTextures
}

func (g *FrameGraph) argBufferRegistry(persistent bool) *registry[ArgumentBufferDesc] {
	if persistent {
		return g.persistentArgBufs
	}
	return g.transientArgBufs
}

func (g *FrameGraph) argBufferArrayRegistry(persistent bool) *registry[ArgumentBufferArrayDesc] {
	if persistent {
		return g.persistentArgArrays
	}
	return g.transientArgArrays
}

// Queue returns the logical submission lane for id, or nil if
// the backend GPU did not advertise it.
func (g *FrameGraph) Queue(id driver.QueueID) *Queue { return g.queues[id] }

// FrameCompletion returns the graph's frame-completion tracker.
func (g *FrameGraph) FrameCompletion() *FrameCompletion { return g.fc }

// OnComplete registers cb to run once per frame, after every
// command buffer submitted that frame has reported back.
func (g *FrameGraph) OnComplete(cb CompletionCallback) {
	g.completionMu.Lock()
	g.completionCBs = append(g.completionCBs, cb)
	g.completionMu.Unlock()
}

// fireCompletion invokes every registered CompletionCallback for
// frame with the frame's aggregated submission error, if any.
func (g *FrameGraph) fireCompletion(frame uint64, err error) {
	g.completionMu.Lock()
	cbs := append([]CompletionCallback(nil), g.completionCBs...)
	g.completionMu.Unlock()
	for _, cb := range cbs {
		cb(frame, err)
	}
}

// CurrentFrame returns the frame number currently being
// recorded (not necessarily complete).
func (g *FrameGraph) CurrentFrame() uint64 { return g.frameNum }

// resetPersistentUsageLists clears the usage-list head/tail of
// every persistent resource touched last frame. Persistent
// slots survive across frames, unlike transient ones (freed and
// re-allocated fresh by cycleFrames/allocate), so their
// usageHead/usageTail would otherwise keep pointing into the
// arena range g.arena.reset() is about to truncate; the next
// appendUsage call would then splice onto a stale node instead
// of starting a fresh list.
func (g *FrameGraph) resetPersistentUsageLists() {
	for h := range g.touchedBuffers {
		if h.HasFlag(FPersistent) {
			g.persistentBuffers.resetUsageList(handleIndex(h))
		}
	}
	for h := range g.touchedTextures {
		if h.HasFlag(FPersistent) {
			g.persistentTextures.resetUsageList(handleIndex(h))
		}
	}
	for h := range g.touchedArgBufs {
		if h.HasFlag(FPersistent) {
			g.persistentArgBufs.resetUsageList(handleIndex(h))
		}
	}
}

func (g *FrameGraph) resetFrameState() {
	g.resetPersistentUsageLists()
	g.arena.reset()
	g.passes = g.passes[:0]
	g.touchedBuffers = make(map[Handle]struct{})
	g.touchedTextures = make(map[Handle]struct{})
	g.touchedArgBufs = make(map[Handle]struct{})
	g.activeBits.Clear()
}

// BeginFrame blocks on the inflight-frame counting semaphore
// and resets per-frame recording state.
func (g *FrameGraph) BeginFrame(ctx context.Context) error {
	if err := g.inflight.Acquire(ctx, 1); err != nil {
		return err
	}
	g.frameNum++
	g.resetFrameState()
	return nil
}

// NewBuffer creates a Buffer. Persistent buffers must carry a
// usage hint; violating this is a fatal
// programmer error.
func (g *FrameGraph) NewBuffer(size int64, usage driver.Usage, hint UsageHint, persistent bool, label string) Buffer {
	if persistent && hint == HintNone {
		fatalf("fgraph: persistent buffer %q created without usage hint", label)
	}
	reg := g.bufferRegistry(persistent)
	idx := reg.allocate(g.fc.Current(), BufferDesc{Size: size, Usage: usage, Hint: hint}, label)
	var flags Flags
	if persistent {
		flags |= FPersistent
	}
	return Buffer{g: g, h: EncodeHandle(TBuffer, flags, idx)}
}

// NewTexture creates a Texture from desc.
func (g *FrameGraph) NewTexture(desc TextureDesc, persistent bool, label string) Texture {
	if persistent && desc.Hint == HintNone {
		fatalf("fgraph: persistent texture %q created without usage hint", label)
	}
	reg := g.textureRegistry(persistent)
	idx := reg.allocate(g.fc.Current(), desc, label)
	var flags Flags
	if persistent {
		flags |= FPersistent
	}
	return Texture{g: g, h: EncodeHandle(TTexture, flags, idx)}
}

// NewArgumentBuffer creates an ArgumentBuffer for the given
// logical descriptor-set layout.
func (g *FrameGraph) NewArgumentBuffer(layout DescriptorSetLayout, persistent bool, label string) ArgumentBuffer {
	reg := g.argBufferRegistry(persistent)
	idx := reg.allocate(g.fc.Current(), ArgumentBufferDesc{Layout: layout}, label)
	var flags Flags
	if persistent {
		flags |= FPersistent
	}
	return ArgumentBuffer{g: g, h: EncodeHandle(TArgumentBuffer, flags, idx)}
}

// NewArgumentBufferArray creates n ArgumentBuffers sharing
// layout, addressable as one ArgumentBufferArray handle — used
// to double/triple-buffer descriptor state across frames in
// flight.
func (g *FrameGraph) NewArgumentBufferArray(layout DescriptorSetLayout, n int, persistent bool, label string) ArgumentBufferArray {
	elems := make([]ArgumentBuffer, n)
	for i := range elems {
		elems[i] = g.NewArgumentBuffer(layout, persistent, label)
	}
	reg := g.argBufferArrayRegistry(persistent)
	idx := reg.allocate(g.fc.Current(), ArgumentBufferArrayDesc{Elems: elems}, label)
	var flags Flags
	if persistent {
		flags |= FPersistent
	}
	return ArgumentBufferArray{g: g, h: EncodeHandle(TArgumentBufferArray, flags, idx)}
}

// DisposeBuffer places b on the deferred-free path (persistent)
// or marks it inactive for this frame (transient).
func (g *FrameGraph) DisposeBuffer(b Buffer) { b.registry().dispose(handleIndex(b.h)) }

// DisposeTexture places t on the deferred-free path
// (persistent) or marks it inactive for this frame (transient).
func (g *FrameGraph) DisposeTexture(t Texture) { t.registry().dispose(handleIndex(t.h)) }

func (g *FrameGraph) trackBufferUsage(b Buffer, p *PassRecord, access AccessType, stages driver.Stage) {
	u := Usage{Pass: p, Access: access, Stages: stages, CPUBeforeRender: stages == StageCPUBeforeRender}
	b.registry().appendUsage(handleIndex(b.h), &g.arena, u)
	g.touchedBuffers[b.h] = struct{}{}
}

// trackTextureUsage records the usage against t's base resource
// when t is a view.
func (g *FrameGraph) trackTextureUsage(t Texture, p *PassRecord, access AccessType, stages driver.Stage) {
	target := t
	if t.h.HasFlag(FResourceView) {
		target = t.Base()
	}
	u := Usage{
		Pass: p, Access: access, Stages: stages,
		IsDepthStencil:  target.IsDepthStencil(),
		CPUBeforeRender: stages == StageCPUBeforeRender,
	}
	target.registry().appendUsage(handleIndex(target.h), &g.arena, u)
	g.touchedTextures[target.h] = struct{}{}
}

func (g *FrameGraph) trackArgumentBufferUsage(a ArgumentBuffer, p *PassRecord) {
	u := Usage{Pass: p, Access: AccessUnusedArgumentBuffer}
	a.registry().appendUsage(handleIndex(a.h), &g.arena, u)
	g.touchedArgBufs[a.h] = struct{}{}
}

// AddPass declares a pass: it runs body synchronously against a
// freshly created typed encoder, recording commands and usages
// immediately.
func (g *FrameGraph) AddPass(name string, kind PassKind, rt *RenderTargetDesc, queue driver.QueueID, body func(Encoder) error) (*PassRecord, error) {
	p := &PassRecord{Name: name, Kind: kind, RenderTarget: rt, Queue: queue}
	if body != nil {
		enc, err := newEncoder(g, p, kind)
		if err != nil {
			return nil, err
		}
		if err := body(enc); err != nil {
			return nil, err
		}
	}
	p.slot = g.allocPassSlot()
	g.passes = append(g.passes, p)
	return p, nil
}

// allocPassSlot reserves and sets a bit in activeBits for a
// newly recorded pass, growing the bitmap if every existing bit
// is already spoken for this frame.
func (g *FrameGraph) allocPassSlot() int {
	idx, ok := g.activeBits.Search()
	if !ok {
		idx = g.activeBits.Grow(1)
	}
	g.activeBits.Set(idx)
	return idx
}

// AddPassAsync schedules body to run on the configured
// JobManager, deferring its recording until Compile calls
// SyncOnMainThread to rendezvous.
func (g *FrameGraph) AddPassAsync(name string, kind PassKind, rt *RenderTargetDesc, queue driver.QueueID, priority Priority, body func(Encoder) error) *PassRecord {
	p := &PassRecord{Name: name, Kind: kind, RenderTarget: rt, Queue: queue}
	p.slot = g.allocPassSlot()
	g.passes = append(g.passes, p)
	g.cfg.JobManager.Async(priority, func() error {
		if body == nil {
			return nil
		}
		enc, err := newEncoder(g, p, kind)
		if err != nil {
			return err
		}
		return body(enc)
	})
	return p
}

func newEncoder(g *FrameGraph, p *PassRecord, kind PassKind) (Encoder, error) {
	base := baseEncoder{p: p, g: g}
	switch kind {
	case PassDraw:
		return &DrawEncoder{base}, nil
	case PassCompute:
		return &ComputeEncoder{base}, nil
	case PassBlit:
		return &BlitEncoder{base}, nil
	case PassExternal, PassCPU:
		return &base, nil
	default:
		fatalf("fgraph: unknown pass kind %v", kind)
		return nil, nil
	}
}

// Compile runs the frame compiler and dependency analyzer over
// every pass added this frame, rendezvousing async pass bodies
// first.
func (g *FrameGraph) Compile(ctx context.Context) (*FrameCommandInfo, []scheduledDep, error) {
	if err := g.cfg.JobManager.SyncOnMainThread(nil); err != nil {
		return nil, nil, err
	}
	return compileFrame(g)
}

// Execute compiles (if not already) and runs the given plan
// through the executor, submitting command buffers and cycling
// frame state. Passing a nil plan compiles first.
func (g *FrameGraph) Execute(ctx context.Context, info *FrameCommandInfo, deps []scheduledDep) error {
	var err error
	if info == nil {
		info, deps, err = g.Compile(ctx)
		if err != nil {
			return err
		}
	}
	return execute(ctx, g, info, deps)
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import "github.com/gviegas/fgraph/driver"

// UsageHint records the intended use of a persistent resource
// and is required (non-HintNone) when one is created. It is
// stored in the descriptor only: the analyzer computes a
// transient resource's backend usage flags from its recorded
// usages, not from the hint.
type UsageHint int

const (
	HintNone UsageHint = iota
	HintSampled
	HintStorage
	HintRenderTarget
	HintUpload
	HintReadback
)

func handleIndex(h Handle) uint32 {
	_, _, idx := DecodeHandle(h)
	return idx
}

// deferredSlice is the capsule, kept in BufferDesc.Deferred, for
// a slice write
// requested before its buffer is materialized: a byte range
// plus a closure to run once the owning transient buffer is
// materialized.
type deferredSlice struct {
	offset, length int64
	apply          func(Buffer) error
}

// BufferDesc is the type-specific descriptor column for the
// Buffer registry.
type BufferDesc struct {
	Size     int64
	Usage    driver.Usage
	Hint     UsageHint
	Backend  driver.Buffer
	Deferred []deferredSlice
}

// TextureDesc is the type-specific descriptor column for the
// Texture registry. A resource view's descriptor is a copy of
// its base's (Backend included) with View set to the view's
// own driver.ImageView; base() on its resMeta names the owning
// texture.
type TextureDesc struct {
	PixelFmt driver.PixelFmt
	Dim      driver.Dim3D
	Layers   int
	Levels   int
	Samples  int
	Usage    driver.Usage
	Hint     UsageHint
	Backend  driver.Image
	View     driver.ImageView
}

func (d *TextureDesc) isDepthStencil() bool {
	switch d.PixelFmt {
	case driver.D16un, driver.D32f, driver.S8ui, driver.D24unS8ui, driver.D32fS8ui:
		return true
	default:
		return false
	}
}

// Buffer is a typed facade over a Handle of type TBuffer.
type Buffer struct {
	g *FrameGraph
	h Handle
}

// Handle returns b's underlying opaque handle.
func (b Buffer) Handle() Handle { return b.h }

// IsValid reports whether b wraps a non-Invalid handle.
func (b Buffer) IsValid() bool { return b.h.IsValid() }

func (b Buffer) registry() *registry[BufferDesc] {
	checkType(b.h, TBuffer)
	return b.g.bufferRegistry(b.h.HasFlag(FPersistent))
}

func (b Buffer) desc() *BufferDesc { return b.registry().descriptorAt(handleIndex(b.h)) }

// Label returns b's debug label.
func (b Buffer) Label() string { return b.registry().label(handleIndex(b.h)) }

// Size returns b's byte capacity.
func (b Buffer) Size() int64 { return b.desc().Size }

// Slice is a typed, CPU-visible view over a byte range of a
// Buffer, tagged with the access it was opened for.
type Slice struct {
	buf    Buffer
	offset int64
	length int64
	access AccessType
	data   []byte
}

// Slice opens a CPU-visible view over [offset, offset+length)
// of b for the given access, waiting for the appropriate
// FrameCompletion stamp first if b is persistent.
func (b Buffer) Slice(offset, length int64, access AccessType) (Slice, error) {
	d := b.desc()
	if offset < 0 || length < 0 || offset+length > d.Size {
		fatalf("fgraph: buffer slice out of range: [%d,%d) of %d", offset, offset+length, d.Size)
	}
	if b.h.HasFlag(FImmutableOnceInitialised) && access.IsWrite() &&
		b.registry().isInitialised(handleIndex(b.h)) {
		fatalf("fgraph: write to immutable-once-initialised buffer after init")
	}
	if b.h.HasFlag(FPersistent) {
		read, write := b.registry().waitFrames(handleIndex(b.h))
		waitForCPUAccess(b.g.fc, access, read, write)
	}
	var data []byte
	if d.Backend != nil && d.Backend.Visible() {
		data = d.Backend.Bytes()[offset : offset+length]
	} else {
		data = make([]byte, length)
	}
	return Slice{buf: b, offset: offset, length: length, access: access, data: data}, nil
}

// Bytes returns the slice's backing bytes. When the buffer's
// backend is host visible they alias its memory, so writes land
// there directly; otherwise writes reach the backend only when
// Close uploads them.
func (s Slice) Bytes() []byte { return s.data }

// Close flushes a written slice back to the backend
// (didModifyRange) and sets the buffer's initialised state
// flag. Reads are a no-op.
func (s Slice) Close() error {
	if !s.access.IsWrite() {
		return nil
	}
	d := s.buf.desc()
	if d.Backend != nil && !d.Backend.Visible() {
		if err := s.buf.g.uploader.UploadBuffer(d.Backend, s.offset, s.data); err != nil {
			return err
		}
	}
	s.buf.registry().setInitialised(handleIndex(s.buf.h))
	return nil
}

// WithDeferredSlice records apply to run over a slice of b once
// b is materialized, if b is transient and not yet backed; for
// a persistent buffer (already backed) it runs apply
// immediately.
func (b Buffer) WithDeferredSlice(offset, length int64, apply func(Buffer) error) error {
	if b.h.HasFlag(FPersistent) {
		return apply(b)
	}
	d := b.desc()
	if d.Backend != nil {
		return apply(b)
	}
	d.Deferred = append(d.Deferred, deferredSlice{offset: offset, length: length, apply: apply})
	return nil
}

// runDeferredSlices runs and clears every pending deferred
// slice closure, called once b's backing has just been
// materialized.
func (b Buffer) runDeferredSlices() error {
	d := b.desc()
	pending := d.Deferred
	d.Deferred = nil
	for _, ds := range pending {
		if err := ds.apply(b); err != nil {
			return err
		}
	}
	return nil
}

// Texture is a typed facade over a Handle of type TTexture.
type Texture struct {
	g *FrameGraph
	h Handle
}

// Handle returns t's underlying opaque handle.
func (t Texture) Handle() Handle { return t.h }

// IsValid reports whether t wraps a non-Invalid handle.
func (t Texture) IsValid() bool { return t.h.IsValid() }

func (t Texture) registry() *registry[TextureDesc] {
	checkType(t.h, TTexture)
	return t.g.textureRegistry(t.h.HasFlag(FPersistent))
}

func (t Texture) desc() *TextureDesc { return t.registry().descriptorAt(handleIndex(t.h)) }

// Label returns t's debug label.
func (t Texture) Label() string { return t.registry().label(handleIndex(t.h)) }

// IsDepthStencil reports whether t's pixel format has a
// depth and/or stencil aspect.
func (t Texture) IsDepthStencil() bool { return t.desc().isDepthStencil() }

// Base returns the resource t is a view of, or the zero Texture
// if t is not a view.
func (t Texture) Base() Texture {
	if !t.h.HasFlag(FResourceView) {
		return Texture{}
	}
	base := t.registry().base(handleIndex(t.h))
	return Texture{g: t.g, h: base}
}

// NewView creates a transient view of t (views are
// transient-only). The view's descriptor is a snapshot of t's
// at the time of creation; usages recorded against the view are
// appended to t's usage list as they are recorded.
func (t Texture) NewView(typ driver.ViewType, layer, layers, level, levels int, label string) Texture {
	reg := t.g.textureRegistry(false)
	desc := *t.desc()
	if desc.Backend != nil {
		iv, err := desc.Backend.NewView(typ, layer, layers, level, levels)
		if err == nil {
			desc.View = iv
		}
	}
	idx := reg.allocate(t.g.fc.Current(), desc, label)
	reg.setBase(idx, t.h)
	return Texture{g: t.g, h: EncodeHandle(TTexture, FResourceView, idx)}
}

// RegionReplace writes data into a sub-region of the texture,
// waiting for CPU access first if t is persistent, then
// delegating to the uploader.
func (t Texture) RegionReplace(off driver.Off3D, size driver.Dim3D, layer, level int, data []byte) error {
	if t.h.HasFlag(FPersistent) {
		read, write := t.registry().waitFrames(handleIndex(t.h))
		waitForCPUAccess(t.g.fc, AccessWrite, read, write)
	}
	d := t.desc()
	if d.Backend == nil {
		fatalf("fgraph: region replace on unmaterialized texture")
	}
	if err := t.g.uploader.UploadTexture(d.Backend, off, size, layer, level, data); err != nil {
		return err
	}
	t.registry().setInitialised(handleIndex(t.h))
	return nil
}

// CopyOut reads a sub-region of the texture back to the CPU,
// waiting for CPU access first if t is persistent.
func (t Texture) CopyOut(off driver.Off3D, size driver.Dim3D, layer, level int) ([]byte, error) {
	if t.h.HasFlag(FPersistent) {
		read, write := t.registry().waitFrames(handleIndex(t.h))
		waitForCPUAccess(t.g.fc, AccessRead, read, write)
	}
	d := t.desc()
	if d.Backend == nil {
		fatalf("fgraph: copy-out on unmaterialized texture")
	}
	return t.g.uploader.DownloadTexture(d.Backend, off, size, layer, level)
}

// ArgumentBufferDesc is the type-specific descriptor column for
// the ArgumentBuffer registry.
type ArgumentBufferDesc struct {
	Layout   DescriptorSetLayout
	Backend  driver.DescTable
	Bindings []BindingValue
}

// ArgumentBuffer is a typed facade over a Handle of type
// TArgumentBuffer: a materialized logical descriptor set.
type ArgumentBuffer struct {
	g *FrameGraph
	h Handle
}

// Handle returns a's underlying opaque handle.
func (a ArgumentBuffer) Handle() Handle { return a.h }

func (a ArgumentBuffer) registry() *registry[ArgumentBufferDesc] {
	checkType(a.h, TArgumentBuffer)
	return a.g.argBufferRegistry(a.h.HasFlag(FPersistent))
}

func (a ArgumentBuffer) desc() *ArgumentBufferDesc { return a.registry().descriptorAt(handleIndex(a.h)) }

// Layout returns the logical descriptor-set layout a was
// encoded from.
func (a ArgumentBuffer) Layout() DescriptorSetLayout { return a.desc().Layout }

// ArgumentBufferArrayDesc is the type-specific descriptor
// column for the ArgumentBufferArray registry: N argument
// buffers sharing one layout, one per frame in flight.
type ArgumentBufferArrayDesc struct {
	Elems []ArgumentBuffer
}

// ArgumentBufferArray is a typed facade over a Handle of type
// TArgumentBufferArray.
type ArgumentBufferArray struct {
	g *FrameGraph
	h Handle
}

// Handle returns a's underlying opaque handle.
func (a ArgumentBufferArray) Handle() Handle { return a.h }

func (a ArgumentBufferArray) registry() *registry[ArgumentBufferArrayDesc] {
	checkType(a.h, TArgumentBufferArray)
	return a.g.argBufferArrayRegistry(a.h.HasFlag(FPersistent))
}

func (a ArgumentBufferArray) desc() *ArgumentBufferArrayDesc {
	return a.registry().descriptorAt(handleIndex(a.h))
}

// At returns the i'th ArgumentBuffer in the array.
func (a ArgumentBufferArray) At(i int) ArgumentBuffer { return a.desc().Elems[i] }

// Len returns the number of elements in the array.
func (a ArgumentBufferArray) Len() int { return len(a.desc().Elems) }

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

// ResType identifies the kind of resource a Handle refers to.
// It occupies bits 48-55 of the encoded Handle.
type ResType uint8

// Resource types.
const (
	TBuffer ResType = iota
	TTexture
	TSampler
	TThreadgroupMemory
	TArgumentBuffer
	TArgumentBufferArray
	TImageblockData
	TImageblock

	numResType
)

func (t ResType) String() string {
	switch t {
	case TBuffer:
		return "Buffer"
	case TTexture:
		return "Texture"
	case TSampler:
		return "Sampler"
	case TThreadgroupMemory:
		return "ThreadgroupMemory"
	case TArgumentBuffer:
		return "ArgumentBuffer"
	case TArgumentBufferArray:
		return "ArgumentBufferArray"
	case TImageblockData:
		return "ImageblockData"
	case TImageblock:
		return "Imageblock"
	default:
		return "ResType(?)"
	}
}

// Flags is a bitset of lifecycle flags carried in a Handle. It
// occupies bits 32-47 of the encoded Handle.
type Flags uint16

// Lifecycle flags. Each bit is independent.
const (
	// FPersistent means the resource lives across frames. It is
	// allocated from the persistent registry and must declare a
	// usage hint at creation.
	FPersistent Flags = 1 << iota
	// FWindowHandle means the resource backs a swapchain image.
	// It must be disposed each frame even though it is
	// persistent-like.
	FWindowHandle
	// FHistoryBuffer means the resource is retained for N frames
	// so that a frame's read observes the previous frame's write.
	FHistoryBuffer
	// FExternalOwnership means the backing memory was registered
	// by the application; the core never frees it.
	FExternalOwnership
	// FImmutableOnceInitialised means writes are rejected once
	// the resource's initialised state flag is set.
	FImmutableOnceInitialised
	// FResourceView means the handle is a view into another
	// resource. Views are transient-only.
	FResourceView
)

const (
	handleTypeShift  = 48
	handleFlagsShift = 32
	handleFlagsMask  = 0xFFFF
	// handleIndexBits is the number of significant bits in the
	// logical-index field. Bits 0-31 are reserved for the index
	// but only the lower 29 are used.
	handleIndexBits = 29
	handleIndexMask = 1<<handleIndexBits - 1
)

// Handle is an opaque 64-bit reference to a resource. Layout:
// bits 48-55 resource type, bits 32-47 lifecycle flags, bits
// 0-31 logical index (29 bits significant). The encoding is a
// stability contract and must not change across versions.
type Handle uint64

// Invalid is the handle value denoting "no resource" — every
// bit set.
const Invalid Handle = ^Handle(0)

// EncodeHandle packs a resource type, flag set, and logical
// index into a Handle. It panics if index does not fit in the
// significant index bits or if t is not a known resource type
// — both are programmer errors.
func EncodeHandle(t ResType, f Flags, index uint32) Handle {
	if t >= numResType {
		panic("fgraph: encode handle: unknown resource type")
	}
	if index&^uint32(handleIndexMask) != 0 {
		panic("fgraph: encode handle: index out of range")
	}
	h := uint64(t)<<handleTypeShift | uint64(f)<<handleFlagsShift | uint64(index)
	if Handle(h) == Invalid {
		// Only reachable if every field happens to be all-ones,
		// which handleIndexMask already rules out for index; kept
		// as a defensive check on the encoding itself.
		panic("fgraph: encode handle: collides with Invalid sentinel")
	}
	return Handle(h)
}

// DecodeHandle unpacks a Handle into its resource type, flag
// set, and logical index. Decoding Invalid, or a handle whose
// type bits do not name a known ResType, is a fatal programmer
// error.
func DecodeHandle(h Handle) (ResType, Flags, uint32) {
	if h == Invalid {
		panic("fgraph: decode handle: invalid handle")
	}
	t := ResType(uint64(h) >> handleTypeShift)
	if t >= numResType {
		panic("fgraph: decode handle: unknown resource type")
	}
	f := Flags(uint64(h)>>handleFlagsShift) & handleFlagsMask
	idx := uint32(h) & handleIndexMask
	return t, f, idx
}

// IsValid reports whether h is not the Invalid sentinel.
func (h Handle) IsValid() bool { return h != Invalid }

// Type returns h's resource type without validating flags or
// index range beyond what DecodeHandle already checks.
func (h Handle) Type() ResType {
	t, _, _ := DecodeHandle(h)
	return t
}

// HasFlag reports whether h carries every flag in f.
func (h Handle) HasFlag(f Flags) bool {
	_, hf, _ := DecodeHandle(h)
	return hf&f == f
}

// checkType panics if h's type bits do not match want: the
// type bits of a handle must match the typed facade used to
// access it.
func checkType(h Handle, want ResType) {
	if t := h.Type(); t != want {
		panic("fgraph: handle type mismatch: want " + want.String() + ", got " + t.String())
	}
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import "github.com/gviegas/fgraph/driver"

// AccessType enumerates the ways a pass may access a resource.
type AccessType int

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessReadWrite
	AccessConstantBuffer
	AccessBlitSource
	AccessBlitDestination
	AccessBlitSynchronisation
	AccessVertexBuffer
	AccessIndexBuffer
	AccessIndirectBuffer
	AccessSampler
	AccessInputAttachment
	AccessReadWriteRenderTarget
	AccessWriteOnlyRenderTarget
	AccessInputAttachmentRenderTarget
	AccessUnusedRenderTarget
	AccessUnusedArgumentBuffer
)

// IsWrite reports whether a may mutate the resource.
func (a AccessType) IsWrite() bool {
	switch a {
	case AccessWrite, AccessReadWrite, AccessBlitDestination,
		AccessReadWriteRenderTarget, AccessWriteOnlyRenderTarget:
		return true
	default:
		return false
	}
}

// IsRenderTarget reports whether a is one of the render-target
// access kinds.
func (a AccessType) IsRenderTarget() bool {
	switch a {
	case AccessReadWriteRenderTarget, AccessWriteOnlyRenderTarget,
		AccessInputAttachmentRenderTarget, AccessUnusedRenderTarget:
		return true
	default:
		return false
	}
}

// accessInfo maps an access type to the driver-level access
// mask it implies. It does not look at depth/stencil aspects:
// render-target accesses map to color access bits whatever the
// target's pixel format, and isDepthStencil is passed
// separately to layoutFor and syncFor.
func accessInfo(a AccessType) driver.Access {
	switch a {
	case AccessRead, AccessBlitSynchronisation:
		return driver.AShaderRead
	case AccessWrite:
		return driver.AShaderWrite
	case AccessReadWrite:
		return driver.AShaderRead | driver.AShaderWrite
	case AccessConstantBuffer:
		return driver.AShaderRead
	case AccessBlitSource:
		return driver.ACopyRead
	case AccessBlitDestination:
		return driver.ACopyWrite
	case AccessVertexBuffer:
		return driver.AVertexBufRead
	case AccessIndexBuffer:
		return driver.AIndexBufRead
	case AccessIndirectBuffer:
		return driver.AShaderRead
	case AccessSampler, AccessInputAttachment, AccessInputAttachmentRenderTarget:
		return driver.AShaderRead
	case AccessReadWriteRenderTarget:
		return driver.AColorRead | driver.AColorWrite
	case AccessWriteOnlyRenderTarget:
		return driver.AColorWrite
	case AccessUnusedRenderTarget, AccessUnusedArgumentBuffer:
		return driver.ANone
	default:
		return driver.ANone
	}
}

// layoutFor computes the image layout an access type implies.
// isDepthStencil selects the depth/stencil variant of the
// render-target and shader-read layouts.
func layoutFor(a AccessType, isDepthStencil bool) driver.Layout {
	switch a {
	case AccessReadWriteRenderTarget, AccessWriteOnlyRenderTarget,
		AccessInputAttachmentRenderTarget:
		if isDepthStencil {
			return driver.LDSTarget
		}
		return driver.LColorTarget
	case AccessSampler, AccessInputAttachment, AccessRead, AccessConstantBuffer:
		if isDepthStencil {
			return driver.LDSRead
		}
		return driver.LShaderRead
	case AccessBlitSource:
		return driver.LCopySrc
	case AccessBlitDestination:
		return driver.LCopyDst
	case AccessUnusedRenderTarget:
		if isDepthStencil {
			return driver.LDSTarget
		}
		return driver.LColorTarget
	default:
		return driver.LCommon
	}
}

// syncFor maps an access type and its programmable-stage mask
// to the synchronization scope a barrier or event needs to wait
// on or signal from. driver.Sync names pipeline phases (vertex
// input, shading stages, color/depth output, resolve, copy)
// while driver.Stage only names which programmable stages a
// shader-facing access runs in; the two are related but not
// interchangeable, so accesses that bypass the programmable
// pipeline (vertex/index fetch, blits, render-target output)
// are mapped directly from the access type instead of Stages.
func syncFor(a AccessType, stages driver.Stage, isDepthStencil bool) driver.Sync {
	switch a {
	case AccessVertexBuffer, AccessIndexBuffer:
		return driver.SVertexInput
	case AccessBlitSource, AccessBlitDestination, AccessBlitSynchronisation:
		return driver.SCopy
	case AccessReadWriteRenderTarget, AccessWriteOnlyRenderTarget,
		AccessInputAttachmentRenderTarget, AccessUnusedRenderTarget:
		if isDepthStencil {
			return driver.SDSOutput
		}
		return driver.SColorOutput
	}
	var s driver.Sync
	if stages&driver.SVertex != 0 {
		s |= driver.SVertexShading
	}
	if stages&driver.SFragment != 0 {
		s |= driver.SFragmentShading
	}
	if stages&driver.SCompute != 0 {
		s |= driver.SComputeShading
	}
	if s == driver.SNone {
		s = driver.SAll
	}
	return s
}

// CommandRange identifies a contiguous, half-open run of
// recorded commands: [Start, End).
type CommandRange struct{ Start, End int }

// StageCPUBeforeRender is the sentinel stage mask for a usage
// that must be excluded from GPU ordering but
// still drives materialization (an upload written directly from
// the CPU before any GPU command touches the resource). It is
// chosen outside driver.Stage's real bit range so it can never
// collide with a genuine programmable-stage mask.
const StageCPUBeforeRender driver.Stage = 1 << 30

// Usage is one declared access to a resource by a pass. It is arena-allocated;
// next is the index of the following node in the resource's
// usage list, or -1 if this is the last one.
type Usage struct {
	Pass            *PassRecord
	Commands        CommandRange
	Access          AccessType
	Stages          driver.Stage
	IsDepthStencil  bool
	CPUBeforeRender bool

	next int32
}

// arena is a bump allocator for Usage nodes, freed as one unit
// at frame end. Uses the span/primitive.next-as-index pattern
// generalized to a typed arena any module can allocate from.
type arena struct {
	usages []Usage
}

func (a *arena) alloc(u Usage) int32 {
	u.next = -1
	a.usages = append(a.usages, u)
	return int32(len(a.usages) - 1)
}

func (a *arena) get(i int32) *Usage { return &a.usages[i] }

func (a *arena) reset() { a.usages = a.usages[:0] }

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"testing"

	"github.com/gviegas/fgraph/driver"
	"github.com/stretchr/testify/assert"
)

func TestAccessTypeIsWrite(t *testing.T) {
	assert.True(t, AccessWrite.IsWrite())
	assert.True(t, AccessReadWrite.IsWrite())
	assert.True(t, AccessBlitDestination.IsWrite())
	assert.True(t, AccessReadWriteRenderTarget.IsWrite())
	assert.True(t, AccessWriteOnlyRenderTarget.IsWrite())
	assert.False(t, AccessRead.IsWrite())
	assert.False(t, AccessBlitSource.IsWrite())
	assert.False(t, AccessSampler.IsWrite())
}

func TestAccessTypeIsRenderTarget(t *testing.T) {
	assert.True(t, AccessReadWriteRenderTarget.IsRenderTarget())
	assert.True(t, AccessWriteOnlyRenderTarget.IsRenderTarget())
	assert.True(t, AccessInputAttachmentRenderTarget.IsRenderTarget())
	assert.True(t, AccessUnusedRenderTarget.IsRenderTarget())
	assert.False(t, AccessRead.IsRenderTarget())
	assert.False(t, AccessSampler.IsRenderTarget())
}

func TestAccessInfoMapping(t *testing.T) {
	assert.Equal(t, driver.AShaderRead, accessInfo(AccessRead))
	assert.Equal(t, driver.AShaderWrite, accessInfo(AccessWrite))
	assert.Equal(t, driver.AShaderRead|driver.AShaderWrite, accessInfo(AccessReadWrite))
	assert.Equal(t, driver.ACopyRead, accessInfo(AccessBlitSource))
	assert.Equal(t, driver.ACopyWrite, accessInfo(AccessBlitDestination))
	assert.Equal(t, driver.AVertexBufRead, accessInfo(AccessVertexBuffer))
	assert.Equal(t, driver.AIndexBufRead, accessInfo(AccessIndexBuffer))
	assert.Equal(t, driver.AColorRead|driver.AColorWrite, accessInfo(AccessReadWriteRenderTarget))
	assert.Equal(t, driver.AColorWrite, accessInfo(AccessWriteOnlyRenderTarget))
	assert.Equal(t, driver.ANone, accessInfo(AccessUnusedRenderTarget))
}

func TestLayoutForRenderTarget(t *testing.T) {
	assert.Equal(t, driver.LColorTarget, layoutFor(AccessWriteOnlyRenderTarget, false))
	assert.Equal(t, driver.LDSTarget, layoutFor(AccessWriteOnlyRenderTarget, true))
	assert.Equal(t, driver.LShaderRead, layoutFor(AccessSampler, false))
	assert.Equal(t, driver.LDSRead, layoutFor(AccessSampler, true))
	assert.Equal(t, driver.LCopySrc, layoutFor(AccessBlitSource, false))
	assert.Equal(t, driver.LCopyDst, layoutFor(AccessBlitDestination, false))
	assert.Equal(t, driver.LCommon, layoutFor(AccessIndirectBuffer, false))
}

func TestSyncForBypassesProgrammablePipeline(t *testing.T) {
	assert.Equal(t, driver.SVertexInput, syncFor(AccessVertexBuffer, 0, false))
	assert.Equal(t, driver.SVertexInput, syncFor(AccessIndexBuffer, 0, false))
	assert.Equal(t, driver.SCopy, syncFor(AccessBlitSource, 0, false))
	assert.Equal(t, driver.SColorOutput, syncFor(AccessWriteOnlyRenderTarget, 0, false))
	assert.Equal(t, driver.SDSOutput, syncFor(AccessWriteOnlyRenderTarget, 0, true))
}

func TestSyncForProgrammableStages(t *testing.T) {
	s := syncFor(AccessRead, driver.SVertex|driver.SFragment, false)
	assert.Equal(t, driver.SVertexShading|driver.SFragmentShading, s)

	s = syncFor(AccessRead, driver.SCompute, false)
	assert.Equal(t, driver.SComputeShading, s)

	s = syncFor(AccessRead, 0, false)
	assert.Equal(t, driver.SAll, s)
}

func TestArenaAllocAppendsUnlinkedNodes(t *testing.T) {
	var a arena
	id1 := a.alloc(Usage{Access: AccessRead})
	id2 := a.alloc(Usage{Access: AccessWrite})
	assert.EqualValues(t, 0, id1)
	assert.EqualValues(t, 1, id2)
	assert.EqualValues(t, -1, a.get(id1).next)
	assert.EqualValues(t, -1, a.get(id2).next)

	a.reset()
	assert.Empty(t, a.usages)
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"testing"

	"github.com/gviegas/fgraph/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadBufferWritesThroughStaging(t *testing.T) {
	g := newTestGraph(nil)
	dst, err := g.gpu.NewBuffer(64, true, driver.UGeneric)
	require.NoError(t, err)

	require.NoError(t, g.uploader.UploadBuffer(dst, 0, []byte{1, 2, 3, 4}))
	require.NoError(t, g.uploader.Flush())
	assert.Equal(t, []byte{1, 2, 3, 4}, dst.Bytes()[:4])
}

func TestUploadBufferFlushesWhenBudgetExceeded(t *testing.T) {
	gpu := newFakeGPU()
	g := NewFrameGraph(gpu, Config{ChunkSize: 32, UploadBudget: 8})
	dst, err := gpu.NewBuffer(64, true, driver.UGeneric)
	require.NoError(t, err)

	require.NoError(t, g.uploader.UploadBuffer(dst, 0, make([]byte, 8)))
	require.NoError(t, g.uploader.UploadBuffer(dst, 8, make([]byte, 8)))
	assert.Equal(t, 1, gpu.commits, "second upload should have flushed the first batch before staging more")
}

func TestUploaderGrowsStagingBufferInBlocks(t *testing.T) {
	g := newTestGraph(nil)
	data := make([]byte, uploadBlock+1)
	dst, err := g.gpu.NewBuffer(int64(len(data)), true, driver.UGeneric)
	require.NoError(t, err)
	require.NoError(t, g.uploader.UploadBuffer(dst, 0, data))
	assert.GreaterOrEqual(t, g.uploader.buf.Cap(), int64(len(data)))
}

func TestReserveLockedReusesUnstagedBlockWithoutGrowing(t *testing.T) {
	g := newTestGraph(nil)
	off1, err := g.uploader.reserveLocked(16)
	require.NoError(t, err)
	capBefore := g.uploader.buf.Cap()

	g.uploader.unstageLocked(off1, 16)
	off2, err := g.uploader.reserveLocked(16)
	require.NoError(t, err)

	assert.Equal(t, off1, off2, "unstaged block should be handed out again by the very next reserve")
	assert.Equal(t, capBefore, g.uploader.buf.Cap(), "reusing an unstaged block must not grow the staging buffer")
}

func TestDownloadTextureFlushesSynchronously(t *testing.T) {
	g := newTestGraph(nil)
	img, err := g.gpu.NewImage(driver.RGBA8un, driver.Dim3D{Width: 2, Height: 2, Depth: 1}, 1, 1, 1, driver.UGeneric)
	require.NoError(t, err)
	data, err := g.uploader.DownloadTexture(img, driver.Off3D{}, driver.Dim3D{Width: 2, Height: 2, Depth: 1}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, data, 2*2*4)
}

// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"context"
	"testing"
	"time"

	"github.com/gviegas/fgraph/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameGraphRegistersQueues(t *testing.T) {
	gpu := newFakeGPU(driver.QGraphics, driver.QCopy)
	g := NewFrameGraph(gpu, Config{})
	assert.NotNil(t, g.Queue(driver.QGraphics))
	assert.NotNil(t, g.Queue(driver.QCopy))
	assert.Nil(t, g.Queue(driver.QCompute))
}

func TestBeginFrameIncrementsFrameNumAndResetsState(t *testing.T) {
	g := newTestGraph(nil)
	assert.EqualValues(t, 1, g.CurrentFrame())
	addSimplePass(g, "p", PassCPU, nil)
	require.NoError(t, g.BeginFrame(context.Background()))
	assert.EqualValues(t, 2, g.CurrentFrame())
	assert.Empty(t, g.passes)
}

func TestAllocPassSlotReusesFreedBitsAcrossFrames(t *testing.T) {
	g := newTestGraph(nil)
	addSimplePass(g, "a", PassCPU, nil)
	addSimplePass(g, "b", PassCPU, nil)
	assert.Equal(t, 2, g.activeBits.Len())

	require.NoError(t, g.BeginFrame(context.Background()))
	assert.Equal(t, 0, g.activeBits.Len())
	addSimplePass(g, "c", PassCPU, nil)
	assert.Equal(t, 1, g.activeBits.Len())
}

func TestAddPassRunsBodySynchronously(t *testing.T) {
	g := newTestGraph(nil)
	var ran bool
	_, err := g.AddPass("draw", PassDraw, &RenderTargetDesc{}, driver.QGraphics, func(e Encoder) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, g.passes, 1)
}

func TestAddPassPropagatesBodyError(t *testing.T) {
	g := newTestGraph(nil)
	sentinel := assert.AnError
	_, err := g.AddPass("draw", PassDraw, &RenderTargetDesc{}, driver.QGraphics, func(e Encoder) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestAddPassAsyncRunsOnCompile(t *testing.T) {
	g := newTestGraph(nil)
	var ran bool
	p := g.AddPassAsync("async", PassCompute, nil, driver.QCompute, PriorityNormal, func(e Encoder) error {
		ran = true
		return nil
	})
	assert.False(t, ran)
	_, _, err := g.Compile(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, p.active)
}

func TestTrackBufferUsageRecordsCPUBeforeRender(t *testing.T) {
	g := newTestGraph(nil)
	b := g.NewBuffer(16, driver.UGeneric, HintNone, false, "buf")
	p := addSimplePass(g, "upload", PassCPU, func(e Encoder) error {
		e.UseBuffer(b, AccessWrite, StageCPUBeforeRender)
		return nil
	})
	usages := b.registry().usages(handleIndex(b.Handle()), &g.arena)
	require.Len(t, usages, 1)
	assert.True(t, usages[0].CPUBeforeRender)
	assert.Same(t, p, usages[0].Pass)
}

func TestTrackTextureUsageAttributesViewToBase(t *testing.T) {
	g := newTestGraph(nil)
	tex := g.NewTexture(TextureDesc{PixelFmt: driver.RGBA8un, Dim: driver.Dim3D{Width: 4, Height: 4, Depth: 1}, Layers: 1, Levels: 1, Samples: 1}, false, "tex")
	backend, err := g.gpu.NewImage(driver.RGBA8un, driver.Dim3D{Width: 4, Height: 4, Depth: 1}, 1, 1, 1, driver.UGeneric)
	require.NoError(t, err)
	tex.desc().Backend = backend
	view := tex.NewView(driver.IView2D, 0, 1, 0, 1, "view")

	addSimplePass(g, "sample", PassCompute, func(e Encoder) error {
		e.UseTexture(view, AccessRead, driver.SCompute)
		return nil
	})
	usages := tex.registry().usages(handleIndex(tex.Handle()), &g.arena)
	require.Len(t, usages, 1)
}

func TestDisposeBufferMarksTransientInactive(t *testing.T) {
	g := newTestGraph(nil)
	b := g.NewBuffer(16, driver.UGeneric, HintNone, false, "buf")
	g.DisposeBuffer(b)
	assert.Panics(t, func() { g.DisposeBuffer(b) })
}

func TestExecuteEmptyFrameAdvancesCompletion(t *testing.T) {
	g := newTestGraph(nil)
	require.NoError(t, g.Execute(context.Background(), nil, nil))
	g.fc.WaitForFrame(1)
	assert.EqualValues(t, 1, g.fc.Current())
}

func TestPersistentResourceUsageListDoesNotLeakAcrossFrames(t *testing.T) {
	g := newTestGraph(nil)
	b := g.NewBuffer(16, driver.UGeneric, HintUpload, true, "persist")
	backend, err := g.gpu.NewBuffer(16, true, driver.UGeneric)
	require.NoError(t, err)
	b.desc().Backend = backend

	addSimplePass(g, "first", PassCPU, func(e Encoder) error {
		e.UseBuffer(b, AccessWrite, StageCPUBeforeRender)
		return nil
	})
	_, _, err = g.Compile(context.Background())
	require.NoError(t, err)

	require.NoError(t, g.BeginFrame(context.Background()))

	addSimplePass(g, "second", PassCPU, func(e Encoder) error {
		e.UseBuffer(b, AccessRead, StageCPUBeforeRender)
		return nil
	})

	done := make(chan []*Usage, 1)
	go func() {
		done <- b.registry().usages(handleIndex(b.Handle()), &g.arena)
	}()
	select {
	case usages := <-done:
		require.Len(t, usages, 1)
	case <-time.After(time.Second):
		t.Fatal("usages() did not return: stale usage list from a prior frame formed a cycle")
	}
}

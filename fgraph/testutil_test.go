// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"context"

	"github.com/gviegas/fgraph/driver"
)

// newTestGraph creates a FrameGraph over a fakeGPU with a small
// chunk size, so registry-growth paths are easy to exercise in a
// handful of allocations, and begins its first frame.
func newTestGraph(gpu *fakeGPU) *FrameGraph {
	if gpu == nil {
		gpu = newFakeGPU()
	}
	g := NewFrameGraph(gpu, Config{ChunkSize: 32})
	if err := g.BeginFrame(context.Background()); err != nil {
		panic(err)
	}
	return g
}

func addSimplePass(g *FrameGraph, name string, kind PassKind, body func(Encoder) error) *PassRecord {
	p, err := g.AddPass(name, kind, nil, driver.QGraphics, body)
	if err != nil {
		panic(err)
	}
	return p
}

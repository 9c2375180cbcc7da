// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"testing"

	"github.com/gviegas/fgraph/driver"
	"github.com/stretchr/testify/assert"
)

func texWithHandle(idx uint32) Texture {
	return Texture{h: EncodeHandle(TTexture, 0, idx)}
}

func TestRenderTargetDescCompatibleNilCases(t *testing.T) {
	var a, b *RenderTargetDesc
	assert.True(t, a.compatible(b))
	rt := &RenderTargetDesc{}
	assert.False(t, a.compatible(rt))
	assert.False(t, rt.compatible(a))
}

func TestRenderTargetDescCompatibleColorAttachments(t *testing.T) {
	a := &RenderTargetDesc{Color: []ColorAttachment{
		{Texture: texWithHandle(1), Level: 0, Layer: 0, Load: driver.LClear, Store: driver.SStore},
	}}
	b := &RenderTargetDesc{Color: []ColorAttachment{
		{Texture: texWithHandle(1), Level: 0, Layer: 0, Load: driver.LClear, Store: driver.SStore},
	}}
	assert.True(t, a.compatible(b))

	c := &RenderTargetDesc{Color: []ColorAttachment{
		{Texture: texWithHandle(2), Level: 0, Layer: 0, Load: driver.LClear, Store: driver.SStore},
	}}
	assert.False(t, a.compatible(c))

	d := &RenderTargetDesc{Color: []ColorAttachment{
		{Texture: texWithHandle(1), Level: 0, Layer: 0, Load: driver.LLoad, Store: driver.SStore},
	}}
	assert.False(t, a.compatible(d))
}

func TestRenderTargetDescCompatibleDepthStencil(t *testing.T) {
	depth := &DepthStencilAttachment{Texture: texWithHandle(9), LoadDepth: driver.LClear, StoreDepth: driver.SStore}
	a := &RenderTargetDesc{Depth: depth}
	b := &RenderTargetDesc{Depth: depth}
	assert.True(t, a.compatible(b))

	c := &RenderTargetDesc{}
	assert.False(t, a.compatible(c))

	other := &RenderTargetDesc{Depth: &DepthStencilAttachment{Texture: texWithHandle(9), LoadDepth: driver.LLoad, StoreDepth: driver.SStore}}
	assert.False(t, a.compatible(other))
}

func TestRenderTargetDescCompatibleColorLengthMismatch(t *testing.T) {
	a := &RenderTargetDesc{Color: []ColorAttachment{{Texture: texWithHandle(1)}}}
	b := &RenderTargetDesc{}
	assert.False(t, a.compatible(b))
}

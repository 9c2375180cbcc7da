// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleRoundTrip(t *testing.T) {
	cases := []struct {
		typ   ResType
		flags Flags
		index uint32
	}{
		{TBuffer, 0, 0},
		{TTexture, FPersistent, 1},
		{TArgumentBuffer, FPersistent | FHistoryBuffer, 12345},
		{TImageblock, FResourceView, handleIndexMask},
		{TSampler, FWindowHandle | FExternalOwnership | FImmutableOnceInitialised, 7},
	}
	for _, c := range cases {
		h := EncodeHandle(c.typ, c.flags, c.index)
		gt, gf, gi := DecodeHandle(h)
		assert.Equal(t, c.typ, gt)
		assert.Equal(t, c.flags, gf)
		assert.Equal(t, c.index, gi)
	}
}

func TestHandleInjective(t *testing.T) {
	seen := make(map[Handle]struct{})
	for _, typ := range []ResType{TBuffer, TTexture, TArgumentBuffer} {
		for _, flags := range []Flags{0, FPersistent, FPersistent | FHistoryBuffer} {
			for _, idx := range []uint32{0, 1, 2, 1000, handleIndexMask} {
				h := EncodeHandle(typ, flags, idx)
				_, dup := seen[h]
				assert.False(t, dup, "collision for (%v,%v,%v)", typ, flags, idx)
				seen[h] = struct{}{}
			}
		}
	}
}

func TestHandleInvalid(t *testing.T) {
	assert.False(t, Invalid.IsValid())
	h := EncodeHandle(TBuffer, FPersistent, 5)
	assert.True(t, h.IsValid())
}

func TestDecodeInvalidPanics(t *testing.T) {
	assert.Panics(t, func() { DecodeHandle(Invalid) })
}

func TestDecodeUnknownTypePanics(t *testing.T) {
	bad := Handle(uint64(numResType) << handleTypeShift)
	assert.Panics(t, func() { DecodeHandle(bad) })
}

func TestEncodeOutOfRangeIndexPanics(t *testing.T) {
	assert.Panics(t, func() { EncodeHandle(TBuffer, 0, handleIndexMask+1) })
}

func TestHandleHasFlag(t *testing.T) {
	h := EncodeHandle(TBuffer, FPersistent|FHistoryBuffer, 3)
	assert.True(t, h.HasFlag(FPersistent))
	assert.True(t, h.HasFlag(FPersistent|FHistoryBuffer))
	assert.False(t, h.HasFlag(FWindowHandle))
}

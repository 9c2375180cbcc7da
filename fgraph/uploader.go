// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"sync"

	"github.com/gviegas/fgraph/driver"
	"github.com/gviegas/fgraph/internal/bitm"
)

// uploadBlock is the granularity of the staging buffer's
// backing storage, sized for texture-shaped allocations; the
// buffer grows in these increments regardless of what fgraph
// stages through it. uploadNBit is the bit width backing the
// allocation bitmap, so a single bitmap word covers one
// 1024x1024 32-bit texture with no mip chain.
const (
	uploadBlock = 131072
	uploadNBit  = 32
)

// Uploader batches CPU-to-GPU and GPU-to-CPU copies behind a
// single staging buffer, flushing synchronously once the
// configured byte budget is reached or a
// caller needs the result back immediately (DownloadTexture).
// One buffer serves an entire FrameGraph instance rather than a
// GOMAXPROCS-sized pool, since fgraph recording is
// single-threaded per instance.
//
// Space within buf is handed out in uploadBlock-sized units
// tracked by bm: reserveLocked sets the blocks it hands out,
// flushLocked clears the whole map as it submits the copies they
// back (while holding mu, so nothing reserves in between), and
// unstageLocked frees a specific
// range's blocks as soon as its bytes have been read back, so a
// download that unstages its own blocks lets the very next
// reserveLocked reuse them without waiting for another flush.
type Uploader struct {
	g      *FrameGraph
	budget int64

	mu     sync.Mutex
	buf    driver.Buffer
	bm     bitm.Bitm[uint32]
	cmdBuf driver.CmdBuffer
}

func newUploader(g *FrameGraph, budget int64) *Uploader {
	return &Uploader{g: g, budget: budget}
}

// usedLocked returns the number of bytes currently reserved in
// buf, in whole uploadBlock units.
func (u *Uploader) usedLocked() int64 {
	return int64(u.bm.Len()) * uploadBlock
}

// reserveLocked reserves a contiguous range of at least n bytes
// within buf, rounded up to whole uploadBlock units. If no free
// range is large enough it flushes the pending batch first (the
// blocks a flushed batch held are no longer needed once
// submitted) and then grows the bitmap and buffer by whole
// words, which guarantees the retried range fits.
func (u *Uploader) reserveLocked(n int64) (int64, error) {
	blocks := int((n + uploadBlock - 1) / uploadBlock)
	if blocks == 0 {
		blocks = 1
	}
	idx, ok := u.bm.SearchRange(blocks)
	if !ok {
		if err := u.flushLocked(); err != nil {
			return 0, err
		}
		words := (blocks + uploadNBit - 1) / uploadNBit
		idx = u.bm.Grow(words)
		size := int64(words*uploadNBit) * uploadBlock
		if u.buf != nil {
			size += u.buf.Cap()
			u.buf.Destroy()
		}
		buf, err := u.g.gpu.NewBuffer(size, true, driver.UGeneric)
		if err != nil {
			u.bm = bitm.Bitm[uint32]{}
			u.buf = nil
			return 0, ErrAllocFailed
		}
		u.buf = buf
	}
	for i := 0; i < blocks; i++ {
		u.bm.Set(idx + i)
	}
	return int64(idx) * uploadBlock, nil
}

// unstageLocked frees the blocks spanning off..off+n, letting a
// later reserveLocked call hand them out again immediately. off
// must be a value previously returned by reserveLocked.
func (u *Uploader) unstageLocked(off, n int64) {
	if off%uploadBlock != 0 {
		fatalf("fgraph: unstageLocked: misaligned offset %d", off)
	}
	ib := int(off / uploadBlock)
	nb := int((n + uploadBlock - 1) / uploadBlock)
	for i := 0; i < nb; i++ {
		u.bm.Unset(ib + i)
	}
}

func (u *Uploader) beginLocked() error {
	if u.cmdBuf != nil && u.cmdBuf.IsRecording() {
		return nil
	}
	if u.cmdBuf == nil {
		cb, err := u.g.gpu.NewCmdBuffer(driver.QCopy)
		if err != nil {
			return wrapBackendErr(err)
		}
		u.cmdBuf = cb
	}
	return wrapBackendErr(u.cmdBuf.Begin())
}

// UploadBuffer stages data and records a copy into dst at
// dstOff, flushing first if the pending batch would exceed the
// configured budget.
func (u *Uploader) UploadBuffer(dst driver.Buffer, dstOff int64, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.usedLocked()+int64(len(data)) > u.budget {
		if err := u.flushLocked(); err != nil {
			return err
		}
	}
	off, err := u.reserveLocked(int64(len(data)))
	if err != nil {
		return err
	}
	if err := u.beginLocked(); err != nil {
		return err
	}
	copy(u.buf.Bytes()[off:], data)
	u.cmdBuf.BeginBlit(false)
	u.cmdBuf.CopyBuffer(&driver.BufferCopy{From: u.buf, FromOff: off, To: dst, ToOff: dstOff, Size: int64(len(data))})
	u.cmdBuf.EndBlit()
	return nil
}

// UploadTexture stages data and records a copy into one
// subresource of dst.
func (u *Uploader) UploadTexture(dst driver.Image, off driver.Off3D, size driver.Dim3D, layer, level int, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.usedLocked()+int64(len(data)) > u.budget {
		if err := u.flushLocked(); err != nil {
			return err
		}
	}
	bufOff, err := u.reserveLocked(int64(len(data)))
	if err != nil {
		return err
	}
	if err := u.beginLocked(); err != nil {
		return err
	}
	copy(u.buf.Bytes()[bufOff:], data)
	u.cmdBuf.BeginBlit(false)
	u.cmdBuf.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore: driver.SNone, SyncAfter: driver.SCopy,
			AccessBefore: driver.ANone, AccessAfter: driver.ACopyWrite,
		},
		LayoutBefore: driver.LUndefined, LayoutAfter: driver.LCopyDst,
	}})
	u.cmdBuf.CopyBufToImg(&driver.BufImgCopy{
		Buf: u.buf, BufOff: bufOff,
		Stride: [2]int64{int64(size.Width), int64(size.Height)},
		Img:    dst, ImgOff: off, Layer: layer, Level: level, Size: size,
	})
	u.cmdBuf.EndBlit()
	return nil
}

// DownloadTexture records a copy from one subresource of src
// into the staging buffer, flushes immediately (readback needs
// the result synchronously), and returns the copied bytes. The
// blocks it reserved are freed the moment the bytes are copied
// out, so they never wait for a later flush to become available
// again.
func (u *Uploader) DownloadTexture(src driver.Image, off driver.Off3D, size driver.Dim3D, layer, level int) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := int64(size.Width) * int64(size.Height) * int64(size.Depth) * 4
	bufOff, err := u.reserveLocked(n)
	if err != nil {
		return nil, err
	}
	if err := u.beginLocked(); err != nil {
		return nil, err
	}
	u.cmdBuf.BeginBlit(false)
	u.cmdBuf.Transition([]driver.Transition{{
		Barrier: driver.Barrier{
			SyncBefore: driver.SNone, SyncAfter: driver.SCopy,
			AccessBefore: driver.ANone, AccessAfter: driver.ACopyRead,
		},
		LayoutBefore: driver.LCommon, LayoutAfter: driver.LCopySrc,
	}})
	u.cmdBuf.CopyImgToBuf(&driver.BufImgCopy{
		Buf: u.buf, BufOff: bufOff,
		Stride: [2]int64{int64(size.Width), int64(size.Height)},
		Img:    src, ImgOff: off, Layer: layer, Level: level, Size: size,
	})
	u.cmdBuf.EndBlit()
	out := make([]byte, n)
	if err := u.flushLocked(); err != nil {
		return nil, err
	}
	copy(out, u.buf.Bytes()[bufOff:bufOff+n])
	u.unstageLocked(bufOff, n)
	return out, nil
}

// Flush submits the pending staging command buffer and blocks
// until the GPU finishes executing it, per synchronous
// upload-budget flush.
func (u *Uploader) Flush() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flushLocked()
}

func (u *Uploader) flushLocked() error {
	if u.cmdBuf == nil || !u.cmdBuf.IsRecording() {
		return nil
	}
	u.bm.Clear()
	if err := u.cmdBuf.End(); err != nil {
		return wrapBackendErr(err)
	}
	ch := make(chan *driver.WorkItem, 1)
	wk := &driver.WorkItem{Queue: driver.QCopy, Work: []driver.CmdBuffer{u.cmdBuf}}
	if err := u.g.gpu.Commit(wk, ch); err != nil {
		return wrapBackendErr(err)
	}
	done := <-ch
	if done.Err != nil {
		return wrapBackendErr(done.Err)
	}
	return nil
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/texreg"
	"golang.org/x/image/draw"
)

// Memory is a texreg.Storage that keeps textures in CPU memory as
// *image.RGBA handles. It is always ready.
//
// Memory is safe for concurrent use; a single handle must not be uploaded to
// concurrently, which the registry guarantees.
type Memory struct {
	live    atomic.Int64
	uploads atomic.Int64
}

// NewMemory creates an empty memory storage.
func NewMemory() *Memory {
	return &Memory{}
}

// Ready always returns true.
func (m *Memory) Ready() bool { return true }

// Live returns the number of handles not yet destroyed.
func (m *Memory) Live() int { return int(m.live.Load()) }

// Uploads returns the number of successful uploads.
func (m *Memory) Uploads() int { return int(m.uploads.Load()) }

// Upload copies buf into an *image.RGBA, reusing prev when the size matches.
func (m *Memory) Upload(prev texreg.Handle, buf *texreg.PixelBuffer) (texreg.Handle, gputypes.TextureFormat, error) {
	var dst *image.RGBA
	if prev != nil {
		p, ok := prev.(*image.RGBA)
		if !ok {
			return prev, gputypes.TextureFormatUndefined, fmt.Errorf("%w: %T", ErrForeignHandle, prev)
		}
		dst = p
	}

	bounds := image.Rect(0, 0, buf.Width, buf.Height)
	if dst != nil && (dst.Pix == nil || dst.Bounds() != bounds) {
		m.Destroy(dst)
		dst = nil
	}
	if dst == nil {
		dst = image.NewRGBA(bounds)
		m.live.Add(1)
	}

	src := &image.RGBA{Pix: buf.Pix, Stride: buf.RowBytes(), Rect: bounds}
	draw.Draw(dst, bounds, src, image.Point{}, draw.Src)

	m.uploads.Add(1)
	return dst, textureFormat, nil
}

// Destroy drops the handle's pixels so later use is detectable, like a
// destroyed GPU texture. nil, foreign and already destroyed handles are
// ignored.
func (m *Memory) Destroy(h texreg.Handle) {
	img, ok := h.(*image.RGBA)
	if !ok || img == nil || img.Pix == nil {
		return
	}
	img.Pix = nil
	m.live.Add(-1)
}

// Ensure Memory implements texreg.Storage.
var _ texreg.Storage = (*Memory)(nil)

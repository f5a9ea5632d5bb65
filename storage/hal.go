// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/texreg"
	"github.com/gogpu/wgpu/hal"
)

// Storage errors.
var (
	// ErrNotReady is returned by Upload when the backend is not resolved.
	ErrNotReady = errors.New("storage: backend not ready")

	// ErrForeignHandle is returned when a handle from another storage is passed in.
	ErrForeignHandle = errors.New("storage: handle not created by this storage")
)

// textureFormat is the format of every uploaded texture. Pixel buffers are
// RGBA8 by contract.
const textureFormat = gputypes.TextureFormatRGBA8Unorm

// HALTexture is the handle returned by HAL.Upload.
type HALTexture struct {
	Texture hal.Texture
	View    hal.TextureView
	Width   uint32
	Height  uint32
}

// HAL is a texreg.Storage that uploads pixel buffers into GPU textures.
//
// HAL is safe for concurrent use.
type HAL struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	live   int
}

// NewHAL creates a storage on the given device and queue. If either is nil
// the storage reports not ready.
func NewHAL(device hal.Device, queue hal.Queue) *HAL {
	return &HAL{device: device, queue: queue}
}

// FromProvider resolves the HAL device and queue from a host provider.
//
// The provider must also implement HalDevice() any and HalQueue() any,
// returning hal.Device and hal.Queue. When it does not, the returned storage
// reports not ready; this is the registry's backend readiness check.
func FromProvider(provider gpucontext.DeviceProvider) *HAL {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		texreg.Logger().Warn("storage: provider does not expose HAL types")
		return &HAL{}
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		texreg.Logger().Warn("storage: provider HalDevice is not hal.Device")
		return &HAL{}
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		texreg.Logger().Warn("storage: provider HalQueue is not hal.Queue")
		return &HAL{}
	}

	texreg.Logger().Info("storage: resolved HAL device from provider")
	return NewHAL(device, queue)
}

// Ready reports whether a device and queue are available.
func (s *HAL) Ready() bool {
	return s.device != nil && s.queue != nil
}

// Live returns the number of textures currently allocated by s.
func (s *HAL) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Upload writes buf into a texture. prev is reused when its size matches buf;
// otherwise it is destroyed and a new texture is created.
func (s *HAL) Upload(prev texreg.Handle, buf *texreg.PixelBuffer) (texreg.Handle, gputypes.TextureFormat, error) {
	if !s.Ready() {
		return prev, gputypes.TextureFormatUndefined, ErrNotReady
	}

	var tex *HALTexture
	if prev != nil {
		p, ok := prev.(*HALTexture)
		if !ok {
			return prev, gputypes.TextureFormatUndefined, fmt.Errorf("%w: %T", ErrForeignHandle, prev)
		}
		tex = p
	}

	//nolint:gosec // G115: dimensions validated positive by PixelBuffer.Validate
	width, height := uint32(buf.Width), uint32(buf.Height)

	if tex != nil && (tex.Width != width || tex.Height != height) {
		s.Destroy(tex)
		tex = nil
	}
	if tex == nil {
		var err error
		tex, err = s.create(width, height)
		if err != nil {
			return nil, gputypes.TextureFormatUndefined, err
		}
	}

	stride := buf.RowBytes()
	size := stride*(buf.Height-1) + buf.Width*4

	s.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.Texture,
			MipLevel: 0,
		},
		buf.Pix[:size],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride), //nolint:gosec // G115: stride validated by PixelBuffer.Validate
			RowsPerImage: height,
		},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	return tex, textureFormat, nil
}

// create allocates a sampled texture and its view.
func (s *HAL) create(width, height uint32) (*HALTexture, error) {
	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}

	texture, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "texreg_external",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create texture %dx%d: %w", width, height, err)
	}

	view, err := s.device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label:         "texreg_external_view",
		Format:        textureFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.device.DestroyTexture(texture)
		return nil, fmt.Errorf("storage: create texture view: %w", err)
	}

	s.mu.Lock()
	s.live++
	s.mu.Unlock()

	texreg.Logger().Debug("storage: created texture", "width", width, "height", height)
	return &HALTexture{Texture: texture, View: view, Width: width, Height: height}, nil
}

// Destroy releases a texture created by Upload. nil and foreign handles are
// ignored.
func (s *HAL) Destroy(h texreg.Handle) {
	tex, ok := h.(*HALTexture)
	if !ok || tex == nil || s.device == nil {
		return
	}
	if tex.View != nil {
		s.device.DestroyTextureView(tex.View)
		tex.View = nil
	}
	if tex.Texture != nil {
		s.device.DestroyTexture(tex.Texture)
		tex.Texture = nil

		s.mu.Lock()
		s.live--
		s.mu.Unlock()
	}
}

// Ensure HAL implements texreg.Storage.
var _ texreg.Storage = (*HAL)(nil)

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package storage

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/texreg"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func solidBuffer(w, h int) *texreg.PixelBuffer {
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = 0xAB
	}
	return &texreg.PixelBuffer{Pix: pix, Width: w, Height: h}
}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (mockProvider) Device() gpucontext.Device             { return nil }
func (mockProvider) Queue() gpucontext.Queue               { return nil }
func (mockProvider) Adapter() gpucontext.Adapter           { return nil }
func (mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (mockProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

// mockHalProvider additionally exposes HAL types.
type mockHalProvider struct {
	mockProvider
	device any
	queue  any
}

func (m mockHalProvider) HalDevice() any { return m.device }
func (m mockHalProvider) HalQueue() any  { return m.queue }

func TestHALNotReady(t *testing.T) {
	s := NewHAL(nil, nil)
	if s.Ready() {
		t.Fatal("Ready() = true without device")
	}
	_, _, err := s.Upload(nil, solidBuffer(2, 2))
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("Upload() = %v, want ErrNotReady", err)
	}
}

func TestHALUploadCreatesAndReuses(t *testing.T) {
	device, queue := createNoopDevice(t)
	s := NewHAL(device, queue)
	if !s.Ready() {
		t.Fatal("Ready() = false with noop device")
	}

	h, format, err := s.Upload(nil, solidBuffer(4, 3))
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	if format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v, want RGBA8Unorm", format)
	}
	tex, ok := h.(*HALTexture)
	if !ok {
		t.Fatalf("handle type = %T, want *HALTexture", h)
	}
	if tex.Width != 4 || tex.Height != 3 {
		t.Errorf("texture size = %dx%d, want 4x3", tex.Width, tex.Height)
	}
	if s.Live() != 1 {
		t.Errorf("Live() = %d, want 1", s.Live())
	}

	// Same size: reused.
	h2, _, err := s.Upload(h, solidBuffer(4, 3))
	if err != nil {
		t.Fatalf("second Upload() = %v", err)
	}
	if h2 != h {
		t.Error("same-size upload did not reuse the texture")
	}

	// New size: recreated, old one destroyed.
	h3, _, err := s.Upload(h2, solidBuffer(8, 8))
	if err != nil {
		t.Fatalf("resize Upload() = %v", err)
	}
	if h3 == h2 {
		t.Error("resize upload reused the old texture")
	}
	if s.Live() != 1 {
		t.Errorf("Live() after resize = %d, want 1", s.Live())
	}

	s.Destroy(h3)
	if s.Live() != 0 {
		t.Errorf("Live() after Destroy = %d, want 0", s.Live())
	}
	s.Destroy(h3) // second destroy is a no-op
	if s.Live() != 0 {
		t.Errorf("Live() after double Destroy = %d, want 0", s.Live())
	}
}

func TestHALUploadStrided(t *testing.T) {
	device, queue := createNoopDevice(t)
	s := NewHAL(device, queue)

	buf := &texreg.PixelBuffer{
		Pix:    make([]byte, 16*(2-1)+3*4),
		Width:  3,
		Height: 2,
		Stride: 16,
	}
	h, _, err := s.Upload(nil, buf)
	if err != nil {
		t.Fatalf("Upload() = %v", err)
	}
	s.Destroy(h)
}

func TestHALForeignHandle(t *testing.T) {
	device, queue := createNoopDevice(t)
	s := NewHAL(device, queue)

	foreign := image.NewRGBA(image.Rect(0, 0, 1, 1))
	h, _, err := s.Upload(foreign, solidBuffer(1, 1))
	if !errors.Is(err, ErrForeignHandle) {
		t.Errorf("Upload(foreign) = %v, want ErrForeignHandle", err)
	}
	if h != texreg.Handle(foreign) {
		t.Error("Upload(foreign) did not hand back the caller's handle")
	}
}

func TestFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)

	tests := []struct {
		name      string
		provider  gpucontext.DeviceProvider
		wantReady bool
	}{
		{"nil provider", nil, false},
		{"no HAL access", mockProvider{}, false},
		{"wrong device type", mockHalProvider{device: "device", queue: queue}, false},
		{"nil queue", mockHalProvider{device: device, queue: nil}, false},
		{"resolved", mockHalProvider{device: device, queue: queue}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromProvider(tt.provider)
			if s == nil {
				t.Fatal("FromProvider returned nil")
			}
			if s.Ready() != tt.wantReady {
				t.Errorf("Ready() = %v, want %v", s.Ready(), tt.wantReady)
			}
		})
	}
}

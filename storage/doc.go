// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package storage provides texreg.Storage implementations: the places pixel
// buffers are uploaded to when the compositor populates a texture.
//
//   - [HAL] uploads into GPU textures through gogpu/wgpu's hal.Device and
//     hal.Queue. Use [FromProvider] to resolve them from a host's
//     gpucontext.DeviceProvider; an unresolved provider yields a HAL storage
//     that reports not ready, and registrations are refused until a ready
//     storage is supplied.
//   - [Memory] copies into CPU-side *image.RGBA handles. It is always ready
//     and suits headless compositing and tests.
package storage

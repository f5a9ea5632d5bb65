package texreg

import (
	"log/slog"

	"github.com/gogpu/gputypes"
)

// slot owns one registered texture: its content function and the storage
// handle its pixels were last uploaded to. A slot is owned by the registrar's
// table and is only touched while borrowed through it, so it needs no lock of
// its own.
type slot struct {
	id      TextureID
	label   string
	content ContentFunc
	store   Storage
	log     func() *slog.Logger

	handle Handle
	format gputypes.TextureFormat
	width  int
	height int
}

func newSlot(id TextureID, desc Descriptor, store Storage, log func() *slog.Logger) *slot {
	return &slot{
		id:      id,
		label:   desc.Label,
		content: desc.Content,
		store:   store,
		log:     log,
	}
}

// fetch asks the producer for a frame at the requested size.
func (s *slot) fetch(width, height int) (*PixelBuffer, bool) {
	buf, ok := s.content(width, height)
	if !ok || buf == nil {
		return nil, false
	}
	return buf, true
}

// populate fetches a frame and uploads it into storage. out is written only
// when populate returns true.
func (s *slot) populate(width, height int, out *SurfaceDescriptor) bool {
	buf, ok := s.fetch(width, height)
	if !ok {
		return false
	}
	defer buf.release()

	if err := buf.Validate(); err != nil {
		s.log().Warn("texreg: rejected pixel buffer", "id", s.id, "label", s.label, "err", err)
		return false
	}

	handle, format, err := s.store.Upload(s.handle, buf)
	s.handle = handle
	if err != nil {
		s.log().Warn("texreg: texture upload failed", "id", s.id, "label", s.label, "err", err)
		return false
	}

	s.format = format
	s.width = buf.Width
	s.height = buf.Height

	*out = SurfaceDescriptor{
		Handle: handle,
		Format: format,
		Width:  buf.Width,
		Height: buf.Height,
	}
	return true
}

// surface describes the storage of the last successful populate.
func (s *slot) surface() (SurfaceDescriptor, bool) {
	if s.handle == nil || s.width == 0 {
		return SurfaceDescriptor{}, false
	}
	return SurfaceDescriptor{
		Handle: s.handle,
		Format: s.format,
		Width:  s.width,
		Height: s.height,
	}, true
}

// info snapshots the slot's metadata.
func (s *slot) info() Info {
	return Info{
		ID:       s.id,
		Label:    s.label,
		Width:    s.width,
		Height:   s.height,
		Format:   s.format,
		Uploaded: s.handle != nil,
	}
}

// release frees the slot's storage. Called by the table once the slot has
// been removed and no borrow is in progress.
func (s *slot) release() {
	if s.handle != nil {
		s.store.Destroy(s.handle)
		s.handle = nil
	}
}

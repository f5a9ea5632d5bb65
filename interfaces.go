package texreg

import (
	"context"

	"github.com/gogpu/gputypes"
)

// Task is a unit of work executed on the consumer context.
// The ctx passed to a task identifies the context it runs on; pass it along
// to registry calls made from inside the task so they dispatch inline.
type Task func(ctx context.Context)

// Scheduler dispatches tasks onto the consumer context.
//
// RunNowOrPost runs task synchronously when ctx shows the caller is already
// on the consumer context, and enqueues it otherwise. Enqueued tasks run in
// FIFO order. See package scheduler for implementations.
type Scheduler interface {
	RunNowOrPost(ctx context.Context, task Task)
}

// Hooks receives texture lifecycle notifications on the consumer context.
// Implementations must tolerate ids they do not know about; in particular
// OnFrameAvailable may arrive for a texture that was already unregistered.
type Hooks interface {
	OnRegistered(id TextureID)
	OnUnregistered(id TextureID)
	OnFrameAvailable(id TextureID)
}

// Storage uploads pixel buffers into backend-managed textures.
type Storage interface {
	// Ready reports whether the backend's entry points resolved. Register
	// refuses new textures while Ready is false.
	Ready() bool

	// Upload copies buf into storage and returns the handle holding it.
	// prev is the handle from the previous upload of the same texture, or nil;
	// the storage may reuse it or destroy it and allocate a new one. On
	// failure the returned handle is the one the caller keeps owning (prev,
	// or nil if prev was destroyed).
	Upload(prev Handle, buf *PixelBuffer) (Handle, gputypes.TextureFormat, error)

	// Destroy releases a handle returned by Upload. nil is ignored.
	Destroy(h Handle)
}

// nopHooks discards every notification.
type nopHooks struct{}

func (nopHooks) OnRegistered(TextureID)     {}
func (nopHooks) OnUnregistered(TextureID)   {}
func (nopHooks) OnFrameAvailable(TextureID) {}

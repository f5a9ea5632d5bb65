// Package texreg provides a registry for externally owned textures whose
// pixels are produced on one goroutine and sampled on another.
//
// # Overview
//
// A producer (any application goroutine) registers a texture by handing the
// registry a [ContentFunc] that yields pixel data on demand. The registry
// assigns a [TextureID], stores the texture in a locked table, and notifies
// the consumer (the compositor, which owns the rendering context) through a
// [Scheduler]. The consumer later asks the registry to [Registrar.Populate]
// the texture, which pulls pixels from the producer's callback and uploads
// them into backend-managed [Storage].
//
// # Quick Start
//
//	runner := scheduler.NewTaskRunner("compositor")
//	defer runner.Close()
//
//	comp := compositor.New()
//	reg, err := texreg.New(runner, storage.NewMemory(), texreg.WithHooks(comp))
//	if err != nil {
//	    return err
//	}
//	comp.SetPopulater(reg)
//
//	id, err := reg.Register(ctx, texreg.Descriptor{
//	    Kind:    texreg.KindPixelBuffer,
//	    Content: texreg.ImageContent(img),
//	})
//
//	// Producer has a new frame:
//	reg.MarkFrameAvailable(ctx, id)
//
// # Threading Model
//
// Register, Unregister and MarkFrameAvailable may be called from any
// goroutine. Notifications to [Hooks] always run on the scheduler's consumer
// context: inline when the caller is already running there, posted
// otherwise. Registration therefore completes eventually, not synchronously;
// a texture is not guaranteed to be renderable when Register returns.
//
// Populate is meant for the consumer context. It borrows the texture for the
// duration of the call only; a concurrent Unregister of the same id waits for
// the borrow to end, and unrelated registrations are never blocked by it.
//
// # Lifecycle
//
// Each id moves through Unregistered -> Registered -> (frame available)* ->
// Unregistered. Ids come from a monotonic counter and are never reused, so a
// stale id held by the consumer can never resolve to a newer texture.
package texreg

package texreg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/texreg/internal/table"
)

// Info describes a registered texture.
type Info struct {
	ID     TextureID
	Label  string
	Width  int // size of the last successful populate, 0 before the first
	Height int
	Format gputypes.TextureFormat

	// Uploaded reports whether the texture currently holds backend storage.
	Uploaded bool
}

// Registrar is the public entry point of the registry. It validates and
// registers textures, owns every registered texture, and notifies Hooks of
// lifecycle changes through a Scheduler.
//
// Registrar is safe for concurrent use.
type Registrar struct {
	sched  Scheduler
	hooks  Hooks
	store  Storage
	logger *slog.Logger

	textures *table.Table[TextureID, *slot]
	nextID   atomic.Int64

	// mu orders Register against Close so that no texture is inserted after
	// Close has emptied the table.
	mu     sync.RWMutex
	closed atomic.Bool
}

// New creates a Registrar that dispatches notifications through sched and
// uploads pixels into store.
//
// store may be nil; every registration then fails with ErrBackendUnavailable.
// This mirrors a backend whose entry points have not resolved yet.
func New(sched Scheduler, store Storage, opts ...Option) (*Registrar, error) {
	if sched == nil {
		return nil, ErrNilScheduler
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Registrar{
		sched:    sched,
		hooks:    o.hooks,
		store:    store,
		logger:   o.logger,
		textures: table.New[TextureID](func(s *slot) { s.release() }),
	}, nil
}

// log returns the registrar's logger, falling back to the package logger.
func (r *Registrar) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return Logger()
}

// Register adds a texture and returns its id.
//
// The backend activation notification (Hooks.OnRegistered) is dispatched via
// the scheduler and may run after Register returns; pass the ctx of the
// current task when calling from the consumer context to have it run inline.
//
// A rejected registration leaves the registry unchanged and schedules nothing.
func (r *Registrar) Register(ctx context.Context, desc Descriptor) (TextureID, error) {
	if err := r.validate(desc); err != nil {
		r.log().Warn("texreg: texture registration rejected",
			"kind", desc.Kind, "label", desc.Label, "err", err)
		return InvalidTextureID, err
	}

	r.mu.RLock()
	if r.closed.Load() {
		r.mu.RUnlock()
		return InvalidTextureID, ErrClosed
	}
	id := TextureID(r.nextID.Add(1))
	s := newSlot(id, desc, r.store, r.log)
	err := r.textures.Insert(id, s)
	r.mu.RUnlock()

	if err != nil {
		return InvalidTextureID, fmt.Errorf("texreg: insert texture %d: %w", id, err)
	}

	r.log().Debug("texreg: texture registered", "id", id, "label", desc.Label)
	r.notify(ctx, "registered", id, r.hooks.OnRegistered)
	return id, nil
}

// validate checks the backend first, then the descriptor.
func (r *Registrar) validate(desc Descriptor) error {
	var err error
	switch {
	case r.store == nil || !r.store.Ready():
		err = ErrBackendUnavailable
	case desc.Kind != KindPixelBuffer:
		err = ErrUnsupportedType
	case desc.Content == nil:
		err = ErrInvalidCallback
	default:
		return nil
	}
	return &RegistrationError{Label: desc.Label, Kind: desc.Kind, Err: err}
}

// Unregister removes a texture and reports whether it was registered.
//
// The texture is gone from the table when Unregister returns: later Populate
// calls fail and its storage has been released. Hooks.OnUnregistered is
// dispatched like the registration notification.
func (r *Registrar) Unregister(ctx context.Context, id TextureID) bool {
	if !r.textures.Remove(id) {
		return false
	}
	r.log().Debug("texreg: texture unregistered", "id", id)
	r.notify(ctx, "unregistered", id, r.hooks.OnUnregistered)
	return true
}

// MarkFrameAvailable tells the consumer that id has a new frame.
//
// It does not consult the table: producers commonly race with their own
// unregistration, so the notification is sent regardless and Hooks must
// ignore unknown ids. It returns false only after Close.
func (r *Registrar) MarkFrameAvailable(ctx context.Context, id TextureID) bool {
	if r.closed.Load() {
		return false
	}
	r.notify(ctx, "frame available", id, r.hooks.OnFrameAvailable)
	return true
}

// Populate fetches the current frame of id at the requested size, uploads it
// to storage and describes the result in out. It returns false, leaving out
// untouched, when id is not registered, the producer has no frame, or the
// upload fails.
//
// Populate is intended for the consumer context. Concurrent calls for
// different ids proceed in parallel.
func (r *Registrar) Populate(id TextureID, width, height int, out *SurfaceDescriptor) bool {
	ok := false
	found := r.textures.With(id, func(s *slot) {
		ok = s.populate(width, height, out)
	})
	if !found {
		r.log().Debug("texreg: populate of unknown texture", "id", id)
	}
	return found && ok
}

// Surface calls fn with the surface id was last populated into and reports
// whether it did. It returns false when id is not registered or has never been
// populated successfully.
//
// The descriptor is borrowed: its handle is valid only while fn runs, since a
// concurrent Unregister waits for fn to return and then destroys the storage.
// fn must not call back into the registrar for the same id.
func (r *Registrar) Surface(id TextureID, fn func(SurfaceDescriptor)) bool {
	called := false
	r.textures.With(id, func(s *slot) {
		if sd, ok := s.surface(); ok {
			fn(sd)
			called = true
		}
	})
	return called
}

// Contains reports whether id is currently registered.
func (r *Registrar) Contains(id TextureID) bool {
	return r.textures.Contains(id)
}

// Info returns metadata for id, or ErrUnknownID.
func (r *Registrar) Info(id TextureID) (Info, error) {
	var info Info
	if !r.textures.With(id, func(s *slot) { info = s.info() }) {
		return Info{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return info, nil
}

// Len returns the number of registered textures.
func (r *Registrar) Len() int {
	return r.textures.Len()
}

// Close unregisters every texture and releases its storage. Notifications
// still queued on the scheduler are dropped when they run. Hooks do not
// receive OnUnregistered for textures released by Close.
//
// Close is idempotent.
func (r *Registrar) Close() error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	n := r.textures.Clear()
	r.log().Info("texreg: registrar closed", "released", n)
	return nil
}

// notify schedules hook(id) on the consumer context. The task checks the
// closed flag when it runs, so tasks that outlive the registrar are no-ops.
func (r *Registrar) notify(ctx context.Context, event string, id TextureID, hook func(TextureID)) {
	r.sched.RunNowOrPost(ctx, func(context.Context) {
		if r.closed.Load() {
			r.log().Debug("texreg: dropping notification after close", "event", event, "id", id)
			return
		}
		hook(id)
	})
}

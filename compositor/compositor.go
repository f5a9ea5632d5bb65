// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositor provides the consumer side of the texture registry: a
// texreg.Hooks implementation that tracks registered textures and pulls new
// frames into storage when the scene is composed.
//
// All methods are intended to run on the consumer context (typically a
// scheduler.TaskRunner). They are nonetheless guarded by a mutex so that
// diagnostics such as Stats may be read from other goroutines.
package compositor

import (
	"slices"
	"sync"

	"github.com/gogpu/texreg"
	"github.com/gogpu/texreg/internal/workers"
)

// Populater is the compositor's view of the registry.
// *texreg.Registrar implements Populater.
type Populater interface {
	// Populate pulls the texture's current frame into storage.
	Populate(id texreg.TextureID, width, height int, out *texreg.SurfaceDescriptor) bool

	// Surface borrows the texture's storage for the duration of fn.
	Surface(id texreg.TextureID, fn func(texreg.SurfaceDescriptor)) bool

	// Contains reports whether the texture is still registered.
	Contains(id texreg.TextureID) bool
}

// Layer is a composed texture. Surface is borrowed from the registry and is
// valid only inside the visit function passed to Compose.
type Layer struct {
	ID      texreg.TextureID
	Surface texreg.SurfaceDescriptor

	// Frames counts successful populates of this texture.
	Frames int
}

// Stats counts compositor events.
type Stats struct {
	Registered     int
	Unregistered   int
	FramesMarked   int
	IgnoredFrames  int // frame notifications for unknown ids
	Populated      int
	PopulateMisses int

	// Stale counts ids dropped because the registry no longer held them,
	// either when OnRegistered arrived or during Compose.
	Stale int
}

type layerState struct {
	dirty  bool
	frames int
}

// Compositor tracks active textures and composes them.
type Compositor struct {
	mu        sync.Mutex
	populater Populater
	layers    map[texreg.TextureID]*layerState
	stats     Stats

	// pool populates dirty layers concurrently; nil means sequentially.
	pool *workers.Pool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithWorkers populates dirty layers on n goroutines during Compose.
// n <= 0 means GOMAXPROCS. The Populater must then be safe for concurrent
// calls with distinct ids, as *texreg.Registrar is.
func WithWorkers(n int) Option {
	return func(c *Compositor) {
		c.pool = workers.New(n)
	}
}

// New creates a compositor. Call SetPopulater before Compose.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		layers: make(map[texreg.TextureID]*layerState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the worker pool, if any. The compositor keeps working
// sequentially afterwards.
func (c *Compositor) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// SetPopulater sets the source of frames, usually the Registrar whose hooks
// this compositor receives.
func (c *Compositor) SetPopulater(p Populater) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.populater = p
}

// OnRegistered starts tracking id. Its first frame is pulled on the next
// Compose. An id the registry has already removed is not tracked: its
// OnUnregistered may have run before this notification.
func (c *Compositor) OnRegistered(id texreg.TextureID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.layers[id]; ok {
		return
	}
	if c.populater != nil && !c.populater.Contains(id) {
		c.stats.Stale++
		texreg.Logger().Debug("compositor: registration of removed texture", "id", id)
		return
	}
	c.layers[id] = &layerState{dirty: true}
	c.stats.Registered++
}

// OnUnregistered stops tracking id.
func (c *Compositor) OnUnregistered(id texreg.TextureID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.layers[id]; !ok {
		return
	}
	delete(c.layers, id)
	c.stats.Unregistered++
}

// OnFrameAvailable marks id for re-population. Unknown ids are ignored.
func (c *Compositor) OnFrameAvailable(id texreg.TextureID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.layers[id]
	if !ok {
		c.stats.IgnoredFrames++
		texreg.Logger().Debug("compositor: frame for unknown texture", "id", id)
		return
	}
	l.dirty = true
	c.stats.FramesMarked++
}

// Compose pulls new frames for every texture marked dirty, sampling at
// width x height, then calls visit for each texture that has a surface,
// ordered by id, and returns the number of layers visited. visit may be nil.
//
// Each layer is borrowed from the registry while visit runs, so its storage
// cannot be destroyed underneath it; visit must not retain the surface.
// Textures the registry no longer holds are dropped. A texture whose producer
// had no frame stays dirty and is retried on the next Compose.
func (c *Compositor) Compose(width, height int, visit func(Layer)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.populater == nil {
		return 0
	}

	ids := c.sortedIDs()
	c.populateDirty(ids, width, height)

	n := 0
	for _, id := range ids {
		l, ok := c.layers[id]
		if !ok || l.frames == 0 {
			continue
		}
		visited := c.populater.Surface(id, func(sd texreg.SurfaceDescriptor) {
			n++
			if visit != nil {
				visit(Layer{ID: id, Surface: sd, Frames: l.frames})
			}
		})
		if !visited && !c.populater.Contains(id) {
			c.dropStale(id)
		}
	}
	return n
}

// populateDirty must be called with c.mu held.
func (c *Compositor) populateDirty(ids []texreg.TextureID, width, height int) {
	type result struct {
		id texreg.TextureID
		sd texreg.SurfaceDescriptor
		ok bool
	}
	var results []result
	for _, id := range ids {
		if c.layers[id].dirty {
			results = append(results, result{id: id})
		}
	}

	if c.pool != nil && len(results) > 1 {
		jobs := make([]func(), len(results))
		for i := range results {
			r := &results[i]
			jobs[i] = func() { r.ok = c.populater.Populate(r.id, width, height, &r.sd) }
		}
		c.pool.Run(jobs)
	} else {
		for i := range results {
			r := &results[i]
			r.ok = c.populater.Populate(r.id, width, height, &r.sd)
		}
	}

	for _, r := range results {
		if r.ok {
			l := c.layers[r.id]
			l.dirty = false
			l.frames++
			c.stats.Populated++
			continue
		}
		if !c.populater.Contains(r.id) {
			c.dropStale(r.id)
			continue
		}
		c.stats.PopulateMisses++
	}
}

// dropStale must be called with c.mu held.
func (c *Compositor) dropStale(id texreg.TextureID) {
	delete(c.layers, id)
	c.stats.Stale++
	texreg.Logger().Debug("compositor: dropped removed texture", "id", id)
}

// Active returns the tracked texture ids in ascending order.
func (c *Compositor) Active() []texreg.TextureID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedIDs()
}

// Stats returns a snapshot of the event counters.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// sortedIDs must be called with c.mu held.
func (c *Compositor) sortedIDs() []texreg.TextureID {
	ids := make([]texreg.TextureID, 0, len(c.layers))
	for id := range c.layers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Ensure Compositor implements texreg.Hooks.
var _ texreg.Hooks = (*Compositor)(nil)

// Ensure Registrar implements Populater.
var _ Populater = (*texreg.Registrar)(nil)

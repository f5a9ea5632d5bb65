// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package workers runs batches of independent jobs on a fixed set of
// goroutines. The compositor uses it to populate several textures at once.
package workers

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a fixed set of worker goroutines, each with its own queue. An idle
// worker steals from the other queues before blocking on its own.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()

	// mu orders queue sends in Run against Close.
	mu      sync.RWMutex
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// New starts a pool. workers <= 0 means GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			runJob(job)
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			runJob(job)
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			runJob(job)
		}
	}
}

func runJob(job func()) {
	if job != nil {
		job()
	}
}

// drain runs whatever is left in q.
func (p *Pool) drain(q chan func()) {
	for {
		select {
		case job := <-q:
			runJob(job)
		default:
			return
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *Pool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Run distributes jobs round-robin and waits for all of them. After Close,
// jobs run on the calling goroutine instead.
func (p *Pool) Run(jobs []func()) {
	if len(jobs) == 0 {
		return
	}

	// Close takes the write lock, so no job is queued after the workers
	// have drained their queues and exited.
	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		for _, job := range jobs {
			runJob(job)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		p.queues[i%p.workers] <- func() {
			defer wg.Done()
			runJob(job)
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the workers after they finish queued jobs. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

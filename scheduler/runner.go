// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/texreg"
)

// Runner errors.
var (
	// ErrRunnerClosed is returned when a runner has been closed.
	ErrRunnerClosed = errors.New("scheduler: runner closed")

	// ErrFlushOnRunner is returned when Flush is called from one of the
	// runner's own tasks, which would wait on itself.
	ErrFlushOnRunner = errors.New("scheduler: flush called from runner task")
)

type runnerKey struct{}

// runMarker is stored in the ctx of each executing task. It is deactivated
// when the task returns so a ctx that escapes its task stops dispatching
// inline.
type runMarker struct {
	runner *TaskRunner
	active atomic.Bool
}

// pendingTask is a queued task with its due time. seq breaks ties so tasks
// due at the same instant run in post order.
type pendingTask struct {
	task texreg.Task
	due  time.Time
	seq  uint64
}

// taskQueue is a min-heap of pending tasks ordered by (due, seq).
type taskQueue []pendingTask

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)   { *q = append(*q, x.(pendingTask)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = pendingTask{}
	*q = old[:n-1]
	return t
}

// TaskRunner executes tasks sequentially on a dedicated goroutine.
//
// Tasks posted without delay run in FIFO order. Delayed tasks run once their
// delay has elapsed, ordered by due time and then by post order. A task that
// panics is logged and does not stop the runner.
//
// TaskRunner is safe for concurrent use.
type TaskRunner struct {
	name string

	mu     sync.Mutex
	queue  taskQueue
	seq    uint64
	closed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	// ctx is the base context of every task; canceled on Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTaskRunner creates a runner and starts its goroutine. name is used in
// log output only.
func NewTaskRunner(name string) *TaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &TaskRunner{
		name:   name,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Name returns the runner's name.
func (r *TaskRunner) Name() string {
	return r.name
}

// RunNowOrPost runs task inline when ctx belongs to a task currently
// executing on r, and posts it otherwise. After Close, posted tasks are
// dropped.
func (r *TaskRunner) RunNowOrPost(ctx context.Context, task texreg.Task) {
	if r.RunsTasksOnCurrentContext(ctx) {
		r.run(ctx, task)
		return
	}
	r.Post(task)
}

// RunsTasksOnCurrentContext reports whether ctx was handed to a task of r
// that has not yet returned.
func (r *TaskRunner) RunsTasksOnCurrentContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	m, ok := ctx.Value(runnerKey{}).(*runMarker)
	return ok && m.runner == r && m.active.Load()
}

// Post enqueues task and reports whether it was accepted.
func (r *TaskRunner) Post(task texreg.Task) bool {
	return r.PostDelayed(task, 0)
}

// PostDelayed enqueues task to run no earlier than delay from now.
func (r *TaskRunner) PostDelayed(task texreg.Task, delay time.Duration) bool {
	if task == nil {
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		texreg.Logger().Debug("scheduler: task posted after close", "runner", r.name)
		return false
	}
	r.seq++
	heap.Push(&r.queue, pendingTask{
		task: task,
		due:  time.Now().Add(delay),
		seq:  r.seq,
	})
	r.mu.Unlock()

	// Non-blocking: one pending wake-up is enough for the loop to re-check.
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of tasks waiting to run.
func (r *TaskRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Flush blocks until every task posted before the call (without delay) has
// run, ctx is done, or the runner is closed.
func (r *TaskRunner) Flush(ctx context.Context) error {
	if r.RunsTasksOnCurrentContext(ctx) {
		return ErrFlushOnRunner
	}

	reached := make(chan struct{})
	if !r.Post(func(context.Context) { close(reached) }) {
		return ErrRunnerClosed
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRunnerClosed
	}
}

// Close stops the runner. Tasks that have not started are dropped; a task
// that is running is allowed to finish. Close waits for the runner goroutine
// to exit and must not be called from one of the runner's tasks.
//
// Close is idempotent.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	dropped := len(r.queue)
	r.queue = nil
	r.mu.Unlock()

	r.cancel()
	close(r.done)
	r.wg.Wait()

	texreg.Logger().Debug("scheduler: runner closed", "runner", r.name, "dropped", dropped)
}

// loop is the runner goroutine.
func (r *TaskRunner) loop() {
	defer r.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		task, wait, ok := r.next()
		if !ok {
			return
		}
		if task != nil {
			r.runTask(task)
			continue
		}

		var timeout <-chan time.Time
		if wait > 0 {
			timer.Reset(wait)
			timeout = timer.C
		}

		select {
		case <-r.wake:
		case <-timeout:
		case <-r.done:
			return
		}
		timer.Stop()
	}
}

// next pops the first due task. When none is due it returns how long to wait
// for the earliest delayed task, or 0 to wait for a post. ok is false once
// the runner is closed.
func (r *TaskRunner) next() (task texreg.Task, wait time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, 0, false
	}
	if len(r.queue) == 0 {
		return nil, 0, true
	}
	if wait = time.Until(r.queue[0].due); wait > 0 {
		return nil, wait, true
	}
	t := heap.Pop(&r.queue).(pendingTask)
	return t.task, 0, true
}

// runTask executes a dequeued task with a fresh run marker.
func (r *TaskRunner) runTask(task texreg.Task) {
	m := &runMarker{runner: r}
	m.active.Store(true)
	defer m.active.Store(false)

	r.run(context.WithValue(r.ctx, runnerKey{}, m), task)
}

// run executes task, recovering and logging a panic.
func (r *TaskRunner) run(ctx context.Context, task texreg.Task) {
	defer func() {
		if p := recover(); p != nil {
			texreg.Logger().Warn("scheduler: task panicked", "runner", r.name, "panic", p)
		}
	}()
	task(ctx)
}

// Ensure TaskRunner implements texreg.Scheduler.
var _ texreg.Scheduler = (*TaskRunner)(nil)

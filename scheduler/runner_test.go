// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestRunner(t *testing.T) *TaskRunner {
	t.Helper()
	r := NewTaskRunner(t.Name())
	t.Cleanup(r.Close)
	return r
}

func flush(t *testing.T, r *TaskRunner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
}

func TestTaskRunnerFIFO(t *testing.T) {
	r := newTestRunner(t)

	var mu sync.Mutex
	var got []int
	for i := range 100 {
		r.Post(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	flush(t, r)

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNowOrPostInline(t *testing.T) {
	r := newTestRunner(t)

	var order []string
	done := make(chan struct{})
	r.Post(func(ctx context.Context) {
		defer close(done)
		if !r.RunsTasksOnCurrentContext(ctx) {
			t.Error("RunsTasksOnCurrentContext(task ctx) = false")
		}
		r.RunNowOrPost(ctx, func(context.Context) {
			order = append(order, "inner")
		})
		order = append(order, "after")
	})
	<-done

	if diff := cmp.Diff([]string{"inner", "after"}, order); diff != "" {
		t.Errorf("inline dispatch order (-want +got):\n%s", diff)
	}
}

func TestRunNowOrPostFromOtherGoroutinePosts(t *testing.T) {
	r := newTestRunner(t)

	if r.RunsTasksOnCurrentContext(context.Background()) {
		t.Fatal("RunsTasksOnCurrentContext(Background) = true")
	}

	ran := make(chan bool, 1)
	r.RunNowOrPost(context.Background(), func(ctx context.Context) {
		ran <- r.RunsTasksOnCurrentContext(ctx)
	})

	select {
	case onRunner := <-ran:
		if !onRunner {
			t.Error("posted task did not run on the runner")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("posted task never ran")
	}
}

func TestEscapedContextIsNotInline(t *testing.T) {
	r := newTestRunner(t)

	escaped := make(chan context.Context, 1)
	r.Post(func(ctx context.Context) { escaped <- ctx })
	ctx := <-escaped
	flush(t, r)

	if r.RunsTasksOnCurrentContext(ctx) {
		t.Error("ctx of a finished task still reports running on the runner")
	}
}

func TestContextOfOtherRunnerIsNotInline(t *testing.T) {
	a := newTestRunner(t)
	b := newTestRunner(t)

	result := make(chan bool, 1)
	a.Post(func(ctx context.Context) {
		result <- b.RunsTasksOnCurrentContext(ctx)
	})
	if <-result {
		t.Error("runner b claims a's task context")
	}
}

func TestPostDelayedOrdering(t *testing.T) {
	r := newTestRunner(t)

	var mu sync.Mutex
	var got []string
	record := func(s string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}
	}

	done := make(chan struct{})
	r.PostDelayed(record("late"), 60*time.Millisecond)
	r.PostDelayed(record("early"), 20*time.Millisecond)
	r.Post(record("now"))
	r.PostDelayed(func(ctx context.Context) { close(done) }, 100*time.Millisecond)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delayed tasks never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"now", "early", "late"}, got); diff != "" {
		t.Errorf("delayed order (-want +got):\n%s", diff)
	}
}

func TestCloseDropsPending(t *testing.T) {
	r := NewTaskRunner("close")

	block := make(chan struct{})
	started := make(chan struct{})
	r.Post(func(context.Context) {
		close(started)
		<-block
	})
	<-started

	ran := false
	r.Post(func(context.Context) { ran = true })
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()
	// Let Close mark the runner closed before the blocking task returns.
	for {
		if r.Len() == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(block)
	<-closed

	if ran {
		t.Error("pending task ran after Close")
	}
	if r.Post(func(context.Context) {}) {
		t.Error("Post after Close = true, want false")
	}
	if err := r.Flush(context.Background()); !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("Flush after Close = %v, want ErrRunnerClosed", err)
	}
	r.Close() // idempotent
}

func TestTaskContextCanceledOnClose(t *testing.T) {
	r := NewTaskRunner("cancel")

	started := make(chan struct{})
	canceled := make(chan struct{})
	r.Post(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(canceled)
	})
	<-started
	r.Close()

	select {
	case <-canceled:
	default:
		t.Error("task ctx not canceled by Close")
	}
}

func TestPanicDoesNotStopRunner(t *testing.T) {
	r := newTestRunner(t)

	r.Post(func(context.Context) { panic("boom") })
	ran := make(chan struct{})
	r.Post(func(context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("runner stopped after a panicking task")
	}
}

func TestFlushFromTask(t *testing.T) {
	r := newTestRunner(t)

	errc := make(chan error, 1)
	r.Post(func(ctx context.Context) { errc <- r.Flush(ctx) })
	if err := <-errc; !errors.Is(err, ErrFlushOnRunner) {
		t.Errorf("Flush from task = %v, want ErrFlushOnRunner", err)
	}
}

func TestPostNil(t *testing.T) {
	r := newTestRunner(t)
	if r.Post(nil) {
		t.Error("Post(nil) = true, want false")
	}
}

func TestConcurrentPostFIFOPerProducer(t *testing.T) {
	r := newTestRunner(t)

	const (
		producers = 8
		perProd   = 250
	)

	var mu sync.Mutex
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProd {
				r.Post(func(context.Context) {
					mu.Lock()
					defer mu.Unlock()
					if i != last[p]+1 {
						t.Errorf("producer %d: task %d ran after %d", p, i, last[p])
					}
					last[p] = i
				})
			}
		}()
	}
	wg.Wait()
	flush(t, r)

	for p, n := range last {
		if n != perProd-1 {
			t.Errorf("producer %d: last task %d, want %d", p, n, perProd-1)
		}
	}
}

func TestImmediate(t *testing.T) {
	var s Immediate
	ran := false
	s.RunNowOrPost(nil, func(ctx context.Context) { //nolint:staticcheck // nil ctx is accepted
		if ctx == nil {
			t.Error("Immediate passed nil ctx to task")
		}
		ran = true
	})
	if !ran {
		t.Error("Immediate did not run task synchronously")
	}
}

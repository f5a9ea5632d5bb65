// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package scheduler provides implementations of texreg.Scheduler.
//
// A [TaskRunner] is a consumer context: a single goroutine that executes
// posted tasks one at a time in FIFO order. Because Go has no notion of
// thread identity, "already running on the consumer context" is carried by
// the context.Context handed to each task. Calls made from inside a task
// that pass that ctx on are dispatched inline:
//
//	runner := scheduler.NewTaskRunner("compositor")
//	defer runner.Close()
//
//	runner.Post(func(ctx context.Context) {
//	    // Runs OnRegistered before Register returns.
//	    reg.Register(ctx, desc)
//	})
//
// [Immediate] runs every task synchronously on the caller's goroutine. It is
// deterministic and intended for tests and single-goroutine hosts.
package scheduler

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"

	"github.com/gogpu/texreg"
)

// Immediate is a Scheduler that runs every task synchronously on the
// calling goroutine, as if the caller were always on the consumer context.
type Immediate struct{}

// RunNowOrPost runs task before returning.
func (Immediate) RunNowOrPost(ctx context.Context, task texreg.Task) {
	if ctx == nil {
		ctx = context.Background()
	}
	task(ctx)
}

// Ensure Immediate implements texreg.Scheduler.
var _ texreg.Scheduler = Immediate{}

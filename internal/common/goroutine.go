// -----------------------------------------------------------------------
// Safe Goroutine - panic isolation for fire-and-forget background work
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// recoveredPanics counts background panics absorbed since process start
var recoveredPanics int64

// RecoveredPanics reports how many background panics have been absorbed.
// The health endpoint surfaces it: a non-zero count means a subscriber or
// background task is broken even though the service is still up.
func RecoveredPanics() int64 {
	return atomic.LoadInt64(&recoveredPanics)
}

// SafeGo runs fn on its own goroutine and absorbs any panic. Event fan-out
// and similar fire-and-forget work goes through here so one broken handler
// cannot take the process down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer recoverBackgroundPanic(logger, name)
		fn()
	}()
}

// SafeGoCtx is SafeGo for context-aware work. fn receives ctx and is
// skipped entirely when ctx is already done at spawn time.
func SafeGoCtx(ctx context.Context, logger arbor.ILogger, name string, fn func(context.Context)) {
	go func() {
		defer recoverBackgroundPanic(logger, name)
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}()
}

func recoverBackgroundPanic(logger arbor.ILogger, name string) {
	r := recover()
	if r == nil {
		return
	}
	atomic.AddInt64(&recoveredPanics, 1)

	stack := GetStackTrace()
	if logger == nil {
		fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", stack).
		Msg("Recovered panic in background goroutine")
}

package dcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// Trace context keys are plain strings, following this package's
// "instance.id"-style convention, so ctx.Value("trace.id") etc. work for
// callers that only need one field without pulling in a logger.
const (
	traceIDKey     = "trace.id"
	traceFileKey   = "trace.file"
	traceLineKey   = "trace.line"
	traceFuncKey   = "trace.func"
	traceStartKey  = "trace.start"
	traceParentKey = "trace.parent.id"
)

var traceSeq uint64

func nextTraceID() string {
	n := atomic.AddUint64(&traceSeq, 1)
	return fmt.Sprintf("%d.%d", time.Now().UnixNano(), n)
}

// WithTrace extends ctx with a unique trace id, the call site of WithTrace,
// and a start time, returning a done function that logs the elapsed
// duration when called. Nested calls carry their parent's trace id under
// trace.parent.id, letting a set of logged spans be reassembled later.
func WithTrace(ctx context.Context) (context.Context, func(format string, args ...interface{})) {
	if ctx == nil {
		ctx = Background()
	}

	pc, file, line, _ := runtime.Caller(1)
	f := runtime.FuncForPC(pc)

	parentID := GetStringValue(ctx, traceIDKey)

	ctx = context.WithValue(ctx, traceIDKey, nextTraceID())
	ctx = context.WithValue(ctx, traceFileKey, file)
	ctx = context.WithValue(ctx, traceLineKey, line)
	ctx = context.WithValue(ctx, traceFuncKey, f.Name())
	ctx = context.WithValue(ctx, traceStartKey, time.Now())
	if parentID != "" {
		ctx = context.WithValue(ctx, traceParentKey, parentID)
	}

	log := GetLogger(ctx, traceIDKey, traceFileKey, traceLineKey, traceFuncKey, traceParentKey)
	ctx = WithLogger(ctx, log)

	start := time.Now()
	return ctx, func(format string, args ...interface{}) {
		GetLogger(ctx, traceStartKey).WithField("trace.duration", time.Since(start)).Debugf(format, args...)
	}
}

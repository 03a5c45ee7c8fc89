package dcontext

import "context"

// Background returns a non-nil, empty context, re-exported so callers
// building up request context only need to import dcontext.
func Background() context.Context {
	return context.Background()
}

// WithValues returns a context with every entry of values attached via its
// own context.WithValue call, so each key can later be resolved
// individually by GetLogger/GetStringValue.
func WithValues(ctx context.Context, values map[string]interface{}) context.Context {
	for k, v := range values {
		ctx = context.WithValue(ctx, k, v)
	}
	return ctx
}

// GetStringValue returns the string stored at key, or "" if key is absent
// or not a string.
func GetStringValue(ctx context.Context, key interface{}) (value string) {
	if v, ok := ctx.Value(key).(string); ok {
		value = v
	}
	return
}

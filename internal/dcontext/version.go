package dcontext

import "context"

// versionKey is a plain string, not a private struct type, so that callers
// (and tests) can resolve it with ctx.Value("version") directly, matching
// the rest of this package's "instance.id"-style string-keyed values.
const versionKey = "version"

// WithVersion stores the running binary's version in the context and
// attaches a logger field reflecting it, so every log line emitted through
// the resulting context's logger carries the version.
func WithVersion(ctx context.Context, version string) context.Context {
	ctx = context.WithValue(ctx, versionKey, version)
	return WithLogger(ctx, GetLogger(ctx, versionKey))
}

// GetVersion returns the version stored by WithVersion, or "" if unset.
func GetVersion(ctx context.Context) string {
	return GetStringValue(ctx, versionKey)
}

package dcontext

import "context"

type repositoryAddressKey struct{}

func (repositoryAddressKey) String() string { return "repositoryAddress" }

// WithRepositoryAddress attaches the CAS address a request is being served
// against (spec §4.4's cache registry key), so logging and metrics can
// break down by backing store.
func WithRepositoryAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, repositoryAddressKey{}, address)
}

// GetRepositoryAddress returns the address attached by
// WithRepositoryAddress, or "" if unset.
func GetRepositoryAddress(ctx context.Context) string {
	return GetStringValue(ctx, repositoryAddressKey{})
}

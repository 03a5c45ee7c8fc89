package repo

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spkrepo/spk/ident"
)

// cacheValue is the C7 taxonomy stored in every cache map except
// ls_tags (which stores success values only). It preserves the two
// principal, actionable error variants losslessly and collapses
// everything else to a tagged string, accepting loss of type for
// non-principal errors (spec §4.7, §9 "Error taxonomy through a
// cache").
type cacheValue struct {
	value interface{}
	err   cachedError
}

// cachedError is one of the four error shapes a cacheValue can carry.
// A nil cachedError means the entry is a Success.
type cachedError interface {
	error
	isCachedError()
}

type invalidPackageSpec struct {
	ident   ident.AnyIdent
	message string
}

func (e invalidPackageSpec) Error() string {
	return fmt.Sprintf("invalid package spec for %s: %s", e.ident, e.message)
}
func (invalidPackageSpec) isCachedError() {}

type packageNotFound struct {
	ident ident.AnyIdent
}

func (e packageNotFound) Error() string { return fmt.Sprintf("package not found: %s", e.ident) }
func (packageNotFound) isCachedError()  {}

type stringError struct {
	message string
}

func (e stringError) Error() string { return e.message }
func (stringError) isCachedError()  {}

type stringifiedError struct {
	message string
}

func (e stringifiedError) Error() string { return "Cached error: " + e.message }
func (stringifiedError) isCachedError()  {}

// cacheSuccess wraps a successful value.
func cacheSuccess(v interface{}) cacheValue {
	return cacheValue{value: v}
}

// cacheErrorFromDomain classifies err into the taxonomy. The two
// principal domain error types round-trip losslessly; plain sentinel
// errors created with errors.New collapse to stringError (their
// message is all they ever carried); any other typed error collapses
// to stringifiedError.
func cacheErrorFromDomain(err error) cacheValue {
	var notFound *PackageNotFoundError
	if errors.As(err, &notFound) {
		return cacheValue{err: packageNotFound{ident: notFound.Ident}}
	}
	var invalid *InvalidPackageSpecError
	if errors.As(err, &invalid) {
		return cacheValue{err: invalidPackageSpec{ident: invalid.Ident, message: invalid.Message}}
	}
	if isPlainStringError(err) {
		return cacheValue{err: stringError{message: err.Error()}}
	}
	return cacheValue{err: stringifiedError{message: err.Error()}}
}

// plainStringErrorType is the concrete type errors.New returns.
var plainStringErrorType = reflect.TypeOf(errors.New(""))

// isPlainStringError reports whether err carries no structure beyond
// its message, i.e. it was built with errors.New or fmt.Errorf without
// %w. errors.New and fmt.Errorf (no %w) both return *errors.errorString
// under the hood; we detect this by comparing err's concrete type to it.
func isPlainStringError(err error) bool {
	return reflect.TypeOf(err) == plainStringErrorType
}

// reconstruct turns a cached error back into an error value for the
// caller. PackageNotFound and InvalidPackageSpec come back as their
// typed errors; any other cached error comes back carrying only its
// message (prefixed with "Cached error: " if it was stringified).
func (c cacheValue) reconstruct() (interface{}, error) {
	if c.err == nil {
		return c.value, nil
	}
	switch e := c.err.(type) {
	case packageNotFound:
		return nil, &PackageNotFoundError{Ident: e.ident}
	case invalidPackageSpec:
		return nil, &InvalidPackageSpecError{Ident: e.ident, Message: e.message}
	default:
		return nil, c.err
	}
}

func (c cacheValue) isSuccess() bool { return c.err == nil }

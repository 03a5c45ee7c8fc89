package repo

import (
	"errors"
	"fmt"

	"github.com/spkrepo/spk/ident"
)

// PackageNotFoundError reports that no tag matches the identifier
// anywhere in the repository (spec §7). Reads translate a
// cas.ErrUnknownReference to this at every boundary returned to a
// caller.
type PackageNotFoundError struct {
	Ident ident.AnyIdent
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Ident)
}

// VersionExistsError reports that a recipe publish in
// DoNotOverwriteVersion mode found an occupied spec tag.
type VersionExistsError struct {
	Ident ident.VersionIdent
}

func (e *VersionExistsError) Error() string {
	return fmt.Sprintf("version already exists: %s", e.Ident)
}

// InvalidPackageSpecError reports that a spec tag's target blob failed
// YAML deserialization.
type InvalidPackageSpecError struct {
	Ident   ident.AnyIdent
	Message string
}

func (e *InvalidPackageSpecError) Error() string {
	return fmt.Sprintf("invalid package spec for %s: %s", e.Ident, e.Message)
}

// InvalidRepositoryMetadataError reports that the spk/repo blob could
// not be parsed as RepositoryMetadata.
type InvalidRepositoryMetadataError struct {
	Message string
}

func (e *InvalidRepositoryMetadataError) Error() string {
	return fmt.Sprintf("invalid repository metadata: %s", e.Message)
}

// FileReadError wraps a CAS payload read failure with the filename
// that was being read.
type FileReadError struct {
	Filename string
	Err      error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Filename, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// SpkSpecError wraps a YAML serialization failure encountered while
// building a spec tag's payload.
type SpkSpecError struct {
	Err error
}

func (e *SpkSpecError) Error() string {
	return fmt.Sprintf("spec serialization failed: %v", e.Err)
}

func (e *SpkSpecError) Unwrap() error { return e.Err }

// IsPackageNotFound reports whether err is, or wraps, a
// PackageNotFoundError.
func IsPackageNotFound(err error) bool {
	var target *PackageNotFoundError
	return errors.As(err, &target)
}

// IsVersionExists reports whether err is, or wraps, a
// VersionExistsError.
func IsVersionExists(err error) bool {
	var target *VersionExistsError
	return errors.As(err, &target)
}

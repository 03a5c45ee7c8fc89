package ident

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdent is returned when an identifier string cannot be parsed
// into its constituent name/version/build parts.
var ErrInvalidIdent = errors.New("invalid identifier")

// VersionIdent names a package at a specific version, with no build
// selected.
type VersionIdent struct {
	Name    PkgName
	Version Version
}

func (v VersionIdent) String() string {
	return fmt.Sprintf("%s/%s", v.Name, v.Version)
}

// BuildIdent names one concrete build of a package version.
type BuildIdent struct {
	Name    PkgName
	Version Version
	Build   BuildKey
}

func (b BuildIdent) String() string {
	return fmt.Sprintf("%s/%s/%s", b.Name, b.Version, b.Build)
}

// VersionIdent discards the build component.
func (b BuildIdent) VersionIdent() VersionIdent {
	return VersionIdent{Name: b.Name, Version: b.Version}
}

// AnyIdent is a package identifier with an optionally-present version and
// build. It is the type embedded inside an embedded-build sentinel (spec
// §3) and the type attached to not-found/invalid-spec errors (spec §7, §8).
type AnyIdent struct {
	Name    PkgName
	Version *Version
	Build   *BuildKey
}

// FromVersionIdent lifts a VersionIdent to an AnyIdent.
func FromVersionIdent(v VersionIdent) AnyIdent {
	ver := v.Version
	return AnyIdent{Name: v.Name, Version: &ver}
}

// FromBuildIdent lifts a BuildIdent to an AnyIdent.
func FromBuildIdent(b BuildIdent) AnyIdent {
	ver := b.Version
	build := b.Build
	return AnyIdent{Name: b.Name, Version: &ver, Build: &build}
}

// String renders "name", "name/version", or "name/version/build"
// depending on which fields are present.
func (a AnyIdent) String() string {
	s := string(a.Name)
	if a.Version == nil {
		return s
	}
	s += "/" + a.Version.String()
	if a.Build == nil {
		return s
	}
	return s + "/" + a.Build.String()
}

// ParseAnyIdent parses the "/"-delimited identifier string produced by
// AnyIdent.String.
func ParseAnyIdent(s string) (AnyIdent, error) {
	parts := strings.SplitN(s, "/", 3)
	name, err := ParsePkgName(parts[0])
	if err != nil {
		return AnyIdent{}, fmt.Errorf("%w: %v", ErrInvalidIdent, err)
	}
	out := AnyIdent{Name: name}
	if len(parts) == 1 {
		return out, nil
	}
	ver, err := ParseVersion(parts[1])
	if err != nil {
		return AnyIdent{}, fmt.Errorf("%w: %v", ErrInvalidIdent, err)
	}
	out.Version = &ver
	if len(parts) == 2 {
		return out, nil
	}
	build, err := ParseBuildKey(parts[2])
	if err != nil {
		return AnyIdent{}, fmt.Errorf("%w: %v", ErrInvalidIdent, err)
	}
	out.Build = &build
	return out, nil
}

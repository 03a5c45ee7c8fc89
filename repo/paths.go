package repo

import (
	"fmt"
	"path"
	"strings"

	"github.com/spkrepo/spk/ident"
)

// TagRoot is one of the two tag-path roots a package identifier maps
// under (spec §3, §4.2).
type TagRoot string

const (
	// RootSpec holds the YAML spec blob for a recipe, package, or embed
	// stub.
	RootSpec TagRoot = "spec"
	// RootPkg holds the CAS layer tag(s) for a built package: either a
	// single legacy scalar tag, or a folder of per-component tags.
	RootPkg TagRoot = "pkg"
)

const tagPathBase = "spk"

// plusEncoder reversibly encodes the "+" character, which tag segments
// cannot contain, as "..". Applied only to the version segment, the
// only part of a tag path that can carry a "+" (post-release markers).
var plusEncoder = strings.NewReplacer("+", "..")
var plusDecoder = strings.NewReplacer("..", "+")

// encodeVersionSegment renders v as a single path segment.
func encodeVersionSegment(v ident.Version) string {
	return plusEncoder.Replace(v.String())
}

// decodeVersionSegment reverses encodeVersionSegment and parses the
// result back into a Version.
func decodeVersionSegment(segment string) (ident.Version, error) {
	return ident.ParseVersion(plusDecoder.Replace(segment))
}

// PathFor builds the tag path `spk/<root>/<name>/<version>/<build>` for
// a fully qualified build identifier (C1). The caller may strip the
// final path.Base segment to enumerate siblings (e.g. all builds of a
// version, or all versions of a name).
func PathFor(root TagRoot, id ident.BuildIdent) string {
	return path.Join(
		tagPathBase,
		string(root),
		id.Name.String(),
		encodeVersionSegment(id.Version),
		id.Build.String(),
	)
}

// VersionPath builds the folder path `spk/<root>/<name>/<version>`
// enumerating the builds of one version.
func VersionPath(root TagRoot, id ident.VersionIdent) string {
	return path.Join(
		tagPathBase,
		string(root),
		id.Name.String(),
		encodeVersionSegment(id.Version),
	)
}

// NamePath builds the folder path `spk/<root>/<name>` enumerating the
// versions published for a package name.
func NamePath(root TagRoot, name ident.PkgName) string {
	return path.Join(tagPathBase, string(root), name.String())
}

// RootPath builds the folder path `spk/<root>` enumerating every
// published package name.
func RootPath(root TagRoot) string {
	return path.Join(tagPathBase, string(root))
}

// ComponentPath appends a component segment to a build's pkg-root
// path, e.g. `spk/pkg/<name>/<version>/<build>/run`.
func ComponentPath(id ident.BuildIdent, c ident.Component) string {
	return path.Join(PathFor(RootPkg, id), c.String())
}

// ParseNameSegment parses one child of RootPath into a PkgName,
// returning an error the caller is expected to log and skip rather
// than propagate (spec §4.1: "non-parseable names are silently
// skipped").
func ParseNameSegment(segment string) (ident.PkgName, error) {
	return ident.ParsePkgName(segment)
}

// ParseVersionSegment parses one child of NamePath into a Version,
// reversing the "+"-as-".." encoding.
func ParseVersionSegment(segment string) (ident.Version, error) {
	v, err := decodeVersionSegment(segment)
	if err != nil {
		return ident.Version{}, fmt.Errorf("parse version segment %q: %w", segment, err)
	}
	return v, nil
}

// ParseBuildSegment parses one child of VersionPath into a BuildKey,
// skipping embed-stub entries when wantConcrete is true (spec §4.1's
// get_concrete_package_builds excludes the `embedded[` prefix).
func ParseBuildSegment(segment string, wantConcrete bool) (ident.BuildKey, error) {
	if wantConcrete && ident.HasEmbeddedPrefix(segment) {
		return ident.BuildKey{}, fmt.Errorf("embedded build excluded: %q", segment)
	}
	return ident.ParseBuildKey(segment)
}

package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string cannot be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// VersionTag is one named, numbered component of a pre/post/epsilon
// modifier set, e.g. "rc.1" parses to {Name: "rc", Value: 1}.
type VersionTag struct {
	Name  string
	Value uint32
}

func (t VersionTag) String() string {
	if t.Value == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s.%d", t.Name, t.Value)
}

// tagSet is an ordered, comma-separated list of VersionTags, used for the
// pre-release, post-release, and epsilon modifiers.
type tagSet []VersionTag

func parseTagSet(s string) (tagSet, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make(tagSet, 0, len(parts))
	for _, p := range parts {
		name, numStr, hasNum := strings.Cut(p, ".")
		var num uint32
		if hasNum {
			n, err := strconv.ParseUint(numStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: bad tag %q: %v", ErrInvalidVersion, p, err)
			}
			num = uint32(n)
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty tag name in %q", ErrInvalidVersion, s)
		}
		out = append(out, VersionTag{Name: name, Value: num})
	}
	return out, nil
}

func (ts tagSet) String() string {
	if len(ts) == 0 {
		return ""
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func (ts tagSet) compare(other tagSet) int {
	for i := 0; i < len(ts) || i < len(other); i++ {
		var a, b VersionTag
		if i < len(ts) {
			a = ts[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a.Name != b.Name {
			return strings.Compare(a.Name, b.Name)
		}
		if a.Value != b.Value {
			if a.Value < b.Value {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Version is an ordered tuple of numeric parts plus optional pre-release,
// post-release, and epsilon modifier tag sets (spec §3). Trailing zero
// parts are semantically equivalent: Version{1,0} == Version{1,0,0}.
type Version struct {
	Parts   []uint32
	Pre     []VersionTag
	Post    []VersionTag
	Epsilon []VersionTag
}

// ParseVersion parses a version string of the form
// "1.2.3-pre.1+post.1~epsilon.1".
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty version", ErrInvalidVersion)
	}

	rest := s
	var epsStr, postStr, preStr string
	if i := strings.IndexByte(rest, '~'); i >= 0 {
		epsStr, rest = rest[i+1:], rest[:i]
	}
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		postStr, rest = rest[i+1:], rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		preStr, rest = rest[i+1:], rest[:i]
	}

	partStrs := strings.Split(rest, ".")
	parts := make([]uint32, 0, len(partStrs))
	for _, p := range partStrs {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: bad numeric part %q in %q: %v", ErrInvalidVersion, p, s, err)
		}
		parts = append(parts, uint32(n))
	}

	pre, err := parseTagSet(preStr)
	if err != nil {
		return Version{}, err
	}
	post, err := parseTagSet(postStr)
	if err != nil {
		return Version{}, err
	}
	eps, err := parseTagSet(epsStr)
	if err != nil {
		return Version{}, err
	}

	return Version{Parts: parts, Pre: pre, Post: post, Epsilon: eps}, nil
}

// String renders the version in canonical form.
func (v Version) String() string {
	strs := make([]string, len(v.Parts))
	for i, p := range v.Parts {
		strs[i] = strconv.FormatUint(uint64(p), 10)
	}
	s := strings.Join(strs, ".")
	if len(v.Pre) > 0 {
		s += "-" + tagSet(v.Pre).String()
	}
	if len(v.Post) > 0 {
		s += "+" + tagSet(v.Post).String()
	}
	if len(v.Epsilon) > 0 {
		s += "~" + tagSet(v.Epsilon).String()
	}
	return s
}

// Normalized strips trailing zero parts, so that Version{1,0,0}.Normalized()
// == Version{1}.Normalized(). At least one part is always retained.
func (v Version) Normalized() Version {
	parts := v.Parts
	for len(parts) > 1 && parts[len(parts)-1] == 0 {
		parts = parts[:len(parts)-1]
	}
	return Version{Parts: parts, Pre: v.Pre, Post: v.Post, Epsilon: v.Epsilon}
}

// PaddedTo returns a copy of v zero-padded (or truncated, if already
// longer) to exactly n parts. Used by the trailing-zero probe set in
// get_concrete_package_builds (spec §4.1).
func (v Version) PaddedTo(n int) Version {
	parts := make([]uint32, n)
	copy(parts, v.Parts)
	return Version{Parts: parts, Pre: v.Pre, Post: v.Post, Epsilon: v.Epsilon}
}

// Equal reports whether v and other are the same version after
// trailing-zero normalization.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Compare returns -1, 0, or 1 comparing v to other after normalization,
// suitable for sort.Slice.
func (v Version) Compare(other Version) int {
	a, b := v.Normalized(), other.Normalized()
	for i := 0; i < len(a.Parts) || i < len(b.Parts); i++ {
		var x, y uint32
		if i < len(a.Parts) {
			x = a.Parts[i]
		}
		if i < len(b.Parts) {
			y = b.Parts[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	if c := tagSet(a.Pre).compare(tagSet(b.Pre)); c != 0 {
		return c
	}
	if c := tagSet(a.Post).compare(tagSet(b.Post)); c != 0 {
		return c
	}
	return tagSet(a.Epsilon).compare(tagSet(b.Epsilon))
}

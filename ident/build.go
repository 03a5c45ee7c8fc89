package ident

import (
	"encoding/base32"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidBuildKey is returned when a build key string is neither a
// well-formed opaque key nor one of the build sentinels.
var ErrInvalidBuildKey = errors.New("invalid build key")

// buildKeyPattern matches the short alphanumeric opaque build key form.
var buildKeyPattern = regexp.MustCompile(`^[A-Za-z2-7]{1,16}$`)

// embedBase32 is the unpadded base32 alphabet used to encode the embedder
// identifier inside an embedded[...] build sentinel (spec §3, §6), grounded
// on original_source's spfs.rs embed-stub encoding.
var embedBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

type buildKind int

const (
	buildKindOpaque buildKind = iota
	buildKindSrc
	buildKindEmbedded
)

// BuildKey identifies a specific build of a package: an opaque short token,
// the source-build sentinel "src", or an embedded-package reference
// "embedded[<base32(embedder identifier)>]".
type BuildKey struct {
	kind     buildKind
	opaque   string
	embedder AnyIdent
}

// SrcBuildKey is the sentinel build key for source builds.
func SrcBuildKey() BuildKey { return BuildKey{kind: buildKindSrc} }

// OpaqueBuildKey validates and wraps an opaque build token.
func OpaqueBuildKey(token string) (BuildKey, error) {
	if !buildKeyPattern.MatchString(token) {
		return BuildKey{}, fmt.Errorf("%w: %q", ErrInvalidBuildKey, token)
	}
	return BuildKey{kind: buildKindOpaque, opaque: token}, nil
}

// EmbeddedBuildKey builds the sentinel referencing the package that embeds
// this one.
func EmbeddedBuildKey(embedder AnyIdent) BuildKey {
	return BuildKey{kind: buildKindEmbedded, embedder: embedder}
}

// ParseBuildKey parses any of the three build key forms.
func ParseBuildKey(s string) (BuildKey, error) {
	if s == "src" {
		return SrcBuildKey(), nil
	}
	if strings.HasPrefix(s, "embedded[") && strings.HasSuffix(s, "]") {
		encoded := s[len("embedded[") : len(s)-1]
		raw, err := embedBase32.DecodeString(encoded)
		if err != nil {
			return BuildKey{}, fmt.Errorf("%w: bad embed encoding in %q: %v", ErrInvalidBuildKey, s, err)
		}
		embedder, err := ParseAnyIdent(string(raw))
		if err != nil {
			return BuildKey{}, fmt.Errorf("%w: bad embedded identifier in %q: %v", ErrInvalidBuildKey, s, err)
		}
		return EmbeddedBuildKey(embedder), nil
	}
	return OpaqueBuildKey(s)
}

// IsSrc reports whether this is the source-build sentinel.
func (b BuildKey) IsSrc() bool { return b.kind == buildKindSrc }

// IsEmbedded reports whether this is an embedded-package reference.
func (b BuildKey) IsEmbedded() bool { return b.kind == buildKindEmbedded }

// Embedder returns the embedder identifier for an embedded build key.
func (b BuildKey) Embedder() (AnyIdent, bool) {
	if !b.IsEmbedded() {
		return AnyIdent{}, false
	}
	return b.embedder, true
}

// String renders the build key in its wire form.
func (b BuildKey) String() string {
	switch b.kind {
	case buildKindSrc:
		return "src"
	case buildKindEmbedded:
		return "embedded[" + embedBase32.EncodeToString([]byte(b.embedder.String())) + "]"
	default:
		return b.opaque
	}
}

// HasEmbeddedPrefix reports whether a raw tag segment looks like an
// embedded-build sentinel, without fully parsing it. Used by
// get_embedded_package_builds (spec §4.1) to filter candidate entries
// before attempting the (possibly failing) decode.
func HasEmbeddedPrefix(s string) bool {
	return strings.HasPrefix(s, "embedded[")
}

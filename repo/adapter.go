package repo

import (
	"context"
	"errors"
	"path"

	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/ident"
	"github.com/spkrepo/spk/storage/cas"
)

// TagSpec is a parsed tag path plus its resolved target digest.
type TagSpec struct {
	Path   string
	Target digest.Digest
}

type storedPackageKind int

const (
	withComponents storedPackageKind = iota
	withoutComponents
)

// StoredPackage is the C2 adapter's uniform view over a discovered
// package's tags, hiding whether the underlying store holds a
// component-tag folder or a single legacy scalar tag (spec §4.3).
type StoredPackage struct {
	kind       storedPackageKind
	build      ident.BuildIdent
	components map[ident.Component]TagSpec
	legacy     TagSpec
}

// LookupPackage lists the tag folder for id and classifies what it
// finds as WithComponents or WithoutComponents, per spec §4.3.
func LookupPackage(ctx context.Context, store cas.Store, id ident.BuildIdent) (StoredPackage, error) {
	folder := PathFor(RootPkg, id)

	entries, err := store.LsTags(ctx, folder)
	if err != nil && !errors.Is(err, cas.ErrUnknownReference) {
		return StoredPackage{}, err
	}

	components := make(map[ident.Component]TagSpec)
	for _, e := range entries {
		if e.Kind != cas.EntryTag {
			continue
		}
		c, err := ident.ParseComponent(e.Name)
		if err != nil {
			continue // unparseable entry: skipped without a warning
		}
		tagPath := path.Join(folder, e.Name)
		tag, err := store.ResolveTag(ctx, tagPath)
		if err != nil {
			continue
		}
		components[c] = TagSpec{Path: tagPath, Target: tag.Target}
	}
	if len(components) > 0 {
		return StoredPackage{kind: withComponents, build: id, components: components}, nil
	}

	tag, err := store.ResolveTag(ctx, folder)
	if err == nil {
		return StoredPackage{
			kind:   withoutComponents,
			build:  id,
			legacy: TagSpec{Path: folder, Target: tag.Target},
		}, nil
	}
	if errors.Is(err, cas.ErrUnknownReference) {
		return StoredPackage{}, &PackageNotFoundError{Ident: ident.FromBuildIdent(id)}
	}
	return StoredPackage{}, err
}

// HasComponents reports whether this package was found in
// component-aware form.
func (s StoredPackage) HasComponents() bool { return s.kind == withComponents }

// Tags returns every tag constituting the package.
func (s StoredPackage) Tags() []TagSpec {
	if s.kind == withoutComponents {
		return []TagSpec{s.legacy}
	}
	tags := make([]TagSpec, 0, len(s.components))
	for _, t := range s.components {
		tags = append(tags, t)
	}
	return tags
}

// IntoComponents returns the component → tag mapping: identity for
// WithComponents; for WithoutComponents, src builds map to
// {Source: tag}, everything else duplicates the single tag to
// {Build: tag, Run: tag} (spec §4.3).
func (s StoredPackage) IntoComponents() map[ident.Component]TagSpec {
	if s.kind == withComponents {
		return s.components
	}
	if s.build.Build.IsSrc() {
		return map[ident.Component]TagSpec{ident.Source(): s.legacy}
	}
	return map[ident.Component]TagSpec{
		ident.Build(): s.legacy,
		ident.Run():   s.legacy,
	}
}

// Package repo implements the repository façade (C4) over a
// content-addressed store: publish, read, list, and remove recipes,
// packages, and embed stubs, with dual-format (legacy/component-aware)
// compatibility and a per-address cache.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/spkrepo/spk/ident"
	"github.com/spkrepo/spk/internal/dcontext"
	"github.com/spkrepo/spk/storage/cas"
)

// OverwritePolicy governs whether publish_recipe_to_storage may
// overwrite an already-published version.
type OverwritePolicy int

const (
	OverwriteVersion OverwritePolicy = iota
	DoNotOverwriteVersion
)

// Repository is a handle onto one CAS-backed package repository. A
// handle is a cheap reference-counted clone: its cache bundle is
// shared with every other handle opened at the same address (spec §3
// Ownership, §4.4 Sharing).
type Repository struct {
	store  cas.Store
	cache  *bundle
	policy CachePolicy
}

// Open binds a Repository handle to store, sharing the process-wide
// cache bundle registered for store's address.
func Open(store cas.Store) *Repository {
	return &Repository{
		store:  store,
		cache:  bundleFor(store.Address()),
		policy: CacheOk,
	}
}

// Address returns the bound CAS address.
func (r *Repository) Address() string { return r.store.Address() }

// CachePolicy returns the handle's current cache policy.
func (r *Repository) CachePolicy() CachePolicy { return r.policy }

// WithCachePolicy runs fn with the handle's policy temporarily swapped
// to p, restoring the previous policy afterward even if fn panics or
// returns an error. This is the Go rendering of the source's scoped
// with_cache_policy! primitive (spec §4.4); the policy itself is a
// plain field here rather than a swapped pointer (spec §9 "Pointer
// swap for cache policy" — a single handle is not meant to be shared
// across goroutines without its own synchronization, so a field
// assignment suffices).
func (r *Repository) WithCachePolicy(p CachePolicy, fn func() error) error {
	prev := r.policy
	r.policy = p
	defer func() { r.policy = prev }()
	return fn()
}

// ListPackages enumerates the immediate folders under spk/spec.
// Non-parseable names are silently skipped (spec §4.1).
func (r *Repository) ListPackages(ctx context.Context) ([]ident.PkgName, error) {
	entries, err := r.lsTags(ctx, RootPath(RootSpec))
	if err != nil {
		return nil, err
	}
	names := make([]ident.PkgName, 0, len(entries))
	for _, e := range entries {
		if e.Kind != cas.EntryFolder {
			continue
		}
		n, err := ParseNameSegment(e.Name)
		if err != nil {
			dcontext.GetLogger(ctx).Warnf("skipping unparseable package name %q: %v", e.Name, err)
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

// ListPackageVersions enumerates the versions published under name,
// sorted ascending and deduplicated after trailing-zero normalization
// (spec §4.1).
func (r *Repository) ListPackageVersions(ctx context.Context, name ident.PkgName) ([]ident.Version, error) {
	if cached, ok := r.getCachedVersions(name); ok {
		return cached, nil
	}

	entries, err := r.lsTags(ctx, NamePath(RootSpec, name))
	if err != nil {
		return nil, err
	}

	// A version segment is a folder once it has published builds, but a
	// version with only a published recipe and no builds yet is tagged
	// directly at its own version path (spec §4.1), so it surfaces here
	// as a leaf EntryTag rather than an EntryFolder; both kinds name a
	// version and are collected (spfs.rs's list_package_versions walks
	// both directory and tag entries the same way).
	seen := make(map[string]ident.Version)
	for _, e := range entries {
		v, err := ParseVersionSegment(e.Name)
		if err != nil {
			dcontext.GetLogger(ctx).Warnf("skipping unparseable version %q for %s: %v", e.Name, name, err)
			continue
		}
		norm := v.Normalized()
		if _, ok := seen[norm.String()]; !ok {
			seen[norm.String()] = v
		}
	}

	versions := make([]ident.Version, 0, len(seen))
	for _, v := range seen {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) < 0 })

	r.putCachedVersions(name, versions)
	return versions, nil
}

// ListPackageBuilds returns the union of concrete and embedded builds
// for a version (spec §4.1).
func (r *Repository) ListPackageBuilds(ctx context.Context, v ident.VersionIdent) ([]ident.BuildIdent, error) {
	concrete, err := r.GetConcretePackageBuilds(ctx, v)
	if err != nil {
		return nil, err
	}
	embedded, err := r.GetEmbeddedPackageBuilds(ctx, v)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]ident.BuildIdent, len(concrete)+len(embedded))
	for _, b := range concrete {
		seen[b.String()] = b
	}
	for _, b := range embedded {
		seen[b.String()] = b
	}
	out := make([]ident.BuildIdent, 0, len(seen))
	for _, b := range seen {
		out = append(out, b)
	}
	return out, nil
}

// probePartLengths returns the set of part-lengths to probe when
// tolerating trailing-zero divergence: 1..5 plus the normalized
// length itself (spec §4.1, §8 boundary "the normalized length itself
// is always probed").
func probePartLengths(normalized ident.Version) []int {
	lengths := map[int]struct{}{len(normalized.Parts): {}}
	for i := 1; i <= 5; i++ {
		lengths[i] = struct{}{}
	}
	out := make([]int, 0, len(lengths))
	for l := range lengths {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// GetConcretePackageBuilds searches both tag trees for builds of v,
// tolerating trailing-zero divergence by probing multiple zero-padded
// variants of the requested version (spec §4.1).
func (r *Repository) GetConcretePackageBuilds(ctx context.Context, v ident.VersionIdent) ([]ident.BuildIdent, error) {
	normalized := v.Version.Normalized()
	lengths := probePartLengths(normalized)

	type probe struct {
		root TagRoot
		path string
	}
	var probes []probe
	for _, root := range []TagRoot{RootSpec, RootPkg} {
		for _, n := range lengths {
			padded := ident.VersionIdent{Name: v.Name, Version: normalized.PaddedTo(n)}
			probes = append(probes, probe{root: root, path: VersionPath(root, padded)})
		}
	}

	seen := make(map[string]ident.BuildKey)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		p := p
		g.Go(func() error {
			entries, err := r.lsTags(gctx, p.path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, e := range entries {
				key, err := ParseBuildSegment(e.Name, true)
				if err != nil {
					if !ident.HasEmbeddedPrefix(e.Name) {
						dcontext.GetLogger(ctx).Warnf("skipping unparseable build %q under %s: %v", e.Name, p.path, err)
					}
					continue
				}
				seen[key.String()] = key
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ident.BuildIdent, 0, len(seen))
	for _, key := range seen {
		out = append(out, ident.BuildIdent{Name: v.Name, Version: v.Version, Build: key})
	}
	return out, nil
}

// GetEmbeddedPackageBuilds lists the src build's sibling entries and
// collects those naming an embed stub (spec §4.1).
func (r *Repository) GetEmbeddedPackageBuilds(ctx context.Context, v ident.VersionIdent) ([]ident.BuildIdent, error) {
	entries, err := r.lsTags(ctx, VersionPath(RootSpec, v))
	if err != nil {
		return nil, err
	}

	var out []ident.BuildIdent
	for _, e := range entries {
		if !ident.HasEmbeddedPrefix(e.Name) {
			continue
		}
		key, err := ident.ParseBuildKey(e.Name)
		if err != nil {
			dcontext.GetLogger(ctx).Warnf("skipping unparseable embed stub %q: %v", e.Name, err)
			continue
		}
		out = append(out, ident.BuildIdent{Name: v.Name, Version: v.Version, Build: key})
	}
	return out, nil
}

// ReadRecipe resolves the spec tag for v and deserializes its YAML
// payload into a Recipe.
func (r *Repository) ReadRecipe(ctx context.Context, v ident.VersionIdent) (Recipe, error) {
	if cached, ok, err := r.getCachedRecipe(v); ok || err != nil {
		return cached, err
	}

	specPath := specTagPathForVersion(v)
	data, err := r.readSpecBlob(ctx, specPath, ident.FromVersionIdent(v))
	if err != nil {
		return Recipe{}, err
	}

	var recipe Recipe
	if err := yaml.Unmarshal(data, &recipe); err != nil {
		var already *InvalidPackageSpecError
		if errors.As(err, &already) {
			r.putCachedRecipeErr(v, already)
			return Recipe{}, already
		}
		ipe := &InvalidPackageSpecError{Ident: ident.FromVersionIdent(v), Message: err.Error()}
		r.putCachedRecipeErr(v, ipe)
		return Recipe{}, ipe
	}
	r.putCachedRecipe(v, recipe)
	return recipe, nil
}

// specTagPathForVersion builds the tag path a recipe is published at:
// the version node itself, `spk/spec/<name>/<version>`, matching the
// original's build_spec_tag(VersionIdent) (spfs.rs). A recipe has no
// build key of its own, so it is tagged at the version folder path
// directly rather than under a synthetic build segment; this also
// means a version's build children (spk/spec/<name>/<version>/<build>)
// never collide with its recipe tag, which is why
// GetConcretePackageBuilds never has to special-case a "recipe" entry.
func specTagPathForVersion(v ident.VersionIdent) string {
	return VersionPath(RootSpec, v)
}

// ReadPackage resolves the spec tag for id and deserializes its YAML
// payload into a Package.
func (r *Repository) ReadPackage(ctx context.Context, id ident.BuildIdent) (Package, error) {
	if cached, ok, err := r.getCachedPackage(id); ok || err != nil {
		return cached, err
	}

	data, err := r.readSpecBlob(ctx, PathFor(RootSpec, id), ident.FromBuildIdent(id))
	if err != nil {
		return Package{}, err
	}

	var pkg Package
	if err := yaml.Unmarshal(data, &pkg); err != nil {
		var already *InvalidPackageSpecError
		if errors.As(err, &already) {
			r.putCachedPackageErr(id, already)
			return Package{}, already
		}
		ipe := &InvalidPackageSpecError{Ident: ident.FromBuildIdent(id), Message: err.Error()}
		r.putCachedPackageErr(id, ipe)
		return Package{}, ipe
	}
	r.putCachedPackage(id, pkg)
	return pkg, nil
}

// ReadEmbedStub resolves the spec tag for id and deserializes its YAML
// payload into an EmbedStub.
func (r *Repository) ReadEmbedStub(ctx context.Context, id ident.BuildIdent) (EmbedStub, error) {
	if cached, ok, err := r.getCachedEmbedStub(id); ok || err != nil {
		return cached, err
	}

	data, err := r.readSpecBlob(ctx, PathFor(RootSpec, id), ident.FromBuildIdent(id))
	if err != nil {
		return EmbedStub{}, err
	}

	var stub EmbedStub
	if err := yaml.Unmarshal(data, &stub); err != nil {
		ipe := &InvalidPackageSpecError{Ident: ident.FromBuildIdent(id), Message: err.Error()}
		r.putCachedEmbedStubErr(id, ipe)
		return EmbedStub{}, ipe
	}
	r.putCachedEmbedStub(id, stub)
	return stub, nil
}

func (r *Repository) readSpecBlob(ctx context.Context, tagPath string, who ident.AnyIdent) ([]byte, error) {
	tag, err := r.resolveTagSpec(ctx, tagPath, who)
	if err != nil {
		return nil, err
	}
	rc, _, err := r.store.OpenPayload(ctx, tag.Target)
	if err != nil {
		return nil, &FileReadError{Filename: tagPath, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &FileReadError{Filename: tagPath, Err: err}
	}
	return data, nil
}

// ReadComponentsFromStorage returns each component's target digest.
// Embedded builds have no components and return an empty map (spec
// §4.1).
func (r *Repository) ReadComponentsFromStorage(ctx context.Context, id ident.BuildIdent) (map[ident.Component]digest.Digest, error) {
	if id.Build.IsEmbedded() {
		return map[ident.Component]digest.Digest{}, nil
	}

	if cached, ok := r.getCachedComponents(id); ok {
		return cached, nil
	}

	stored, err := LookupPackage(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	out := make(map[ident.Component]digest.Digest)
	for c, tag := range stored.IntoComponents() {
		out[c] = tag.Target
	}
	r.putCachedComponents(id, out)
	return out, nil
}

// PublishRecipeToStorage serializes recipe to YAML, commits a CAS
// blob, and pushes the spec tag. Under DoNotOverwriteVersion, an
// already-occupied tag fails with VersionExistsError before the blob
// is committed (spec §4.1; the check-then-act has a benign race window
// since the tag log is append-only and non-destructive).
func (r *Repository) PublishRecipeToStorage(ctx context.Context, recipe Recipe, policy OverwritePolicy) error {
	tagPath := specTagPathForVersion(recipe.Ident)

	if policy == DoNotOverwriteVersion {
		if has, err := r.store.HasTag(ctx, tagPath); err != nil {
			return err
		} else if has {
			return &VersionExistsError{Ident: recipe.Ident}
		}
	}

	data, err := MarshalSpec(recipe)
	if err != nil {
		return err
	}
	dgst, err := r.store.CommitBlob(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if _, err := r.store.PushTag(ctx, tagPath, dgst); err != nil {
		return err
	}

	r.cache.purge()
	return nil
}

// PublishPackageToStorage pushes the legacy tag, every component tag,
// then the spec tag, in that order (spec §4.1; the ordering is visible
// — a reader who sees the spec tag is guaranteed to see all artifact
// tags, per spec §5).
func (r *Repository) PublishPackageToStorage(ctx context.Context, pkg Package, components map[ident.Component]digest.Digest) error {
	required := ident.Run()
	if pkg.Ident.Build.IsSrc() {
		required = ident.Source()
	}
	legacyDigest, ok := components[required]
	if !ok {
		return fmt.Errorf("publish %s: missing required component %q for legacy tag", pkg.Ident, required)
	}

	legacyPath := PathFor(RootPkg, pkg.Ident)
	if _, err := r.store.PushTag(ctx, legacyPath, legacyDigest); err != nil {
		return err
	}

	for c, dgst := range components {
		if _, err := r.store.PushTag(ctx, ComponentPath(pkg.Ident, c), dgst); err != nil {
			return err
		}
	}

	specPath := PathFor(RootSpec, pkg.Ident)
	data, err := MarshalSpec(pkg)
	if err != nil {
		return err
	}
	specDigest, err := r.store.CommitBlob(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if _, err := r.store.PushTag(ctx, specPath, specDigest); err != nil {
		return err
	}

	r.cache.purge()
	return nil
}

// PublishEmbedStubToStorage publishes only the spec tag for stub.
func (r *Repository) PublishEmbedStubToStorage(ctx context.Context, stub EmbedStub) error {
	specPath := PathFor(RootSpec, stub.Ident)
	data, err := MarshalSpec(stub)
	if err != nil {
		return err
	}
	dgst, err := r.store.CommitBlob(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if _, err := r.store.PushTag(ctx, specPath, dgst); err != nil {
		return err
	}
	r.cache.purge()
	return nil
}

// RemoveRecipe removes the matching spec tag, translating
// UnknownReference to PackageNotFoundError.
func (r *Repository) RemoveRecipe(ctx context.Context, v ident.VersionIdent) error {
	tagPath := specTagPathForVersion(v)
	if err := r.store.RemoveTagStream(ctx, tagPath); err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			return &PackageNotFoundError{Ident: ident.FromVersionIdent(v)}
		}
		return err
	}
	r.cache.purge()
	return nil
}

// RemoveEmbedStubFromStorage removes the matching spec tag, translating
// UnknownReference to PackageNotFoundError.
func (r *Repository) RemoveEmbedStubFromStorage(ctx context.Context, id ident.BuildIdent) error {
	tagPath := PathFor(RootSpec, id)
	if err := r.store.RemoveTagStream(ctx, tagPath); err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			return &PackageNotFoundError{Ident: ident.FromBuildIdent(id)}
		}
		return err
	}
	r.cache.purge()
	return nil
}

// RemovePackageFromStorage concurrently attempts three deletion
// groups — component tags, the legacy tag, and the spec tag — then
// combines their outcomes: a success plus any number of
// PackageNotFound errors is success; any other error dominates;
// all-PackageNotFound is PackageNotFound (spec §4.1).
func (r *Repository) RemovePackageFromStorage(ctx context.Context, id ident.BuildIdent) error {
	var componentPaths []string
	err := r.WithCachePolicy(BypassCache, func() error {
		stored, err := LookupPackage(ctx, r.store, id)
		if err != nil && !IsPackageNotFound(err) {
			return err
		}
		if err == nil {
			for _, t := range stored.Tags() {
				componentPaths = append(componentPaths, t.Path)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	deletions := append([]string{}, componentPaths...)
	deletions = append(deletions, PathFor(RootPkg, id), PathFor(RootSpec, id))

	results := make([]error, len(deletions))
	g, gctx := errgroup.WithContext(context.Background())
	for i, p := range deletions {
		i, p := i, p
		g.Go(func() error {
			results[i] = r.store.RemoveTagStream(gctx, p)
			return nil
		})
	}
	_ = g.Wait() // individual results are collected below; this never returns an error

	r.cache.purge()

	deletedSomething := false
	var dominant error
	for _, err := range results {
		switch {
		case err == nil:
			deletedSomething = true
		case errors.Is(err, cas.ErrUnknownReference):
			// tolerated: counts toward all-not-found only
		default:
			dominant = err
		}
	}
	if dominant != nil {
		return dominant
	}
	if deletedSomething {
		return nil
	}
	return &PackageNotFoundError{Ident: ident.FromBuildIdent(id)}
}

func (r *Repository) lsTags(ctx context.Context, folder string) ([]cas.Entry, error) {
	if r.policy == CacheOk {
		v, ok := r.cache.lsTags.Get(folder)
		recordCacheLookup("ls_tags", ok)
		if ok {
			return v, nil
		}
	}
	entries, err := r.store.LsTags(ctx, folder)
	if err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			entries = nil
		} else {
			return nil, err
		}
	}
	r.cache.lsTags.Add(folder, entries)
	return entries, nil
}

// resolveTagSpec resolves tagPath through the tag_spec cache. A missing
// tag is reported, and cached, as a PackageNotFoundError for who, so a
// cached miss reaches the caller the same way a live one does.
func (r *Repository) resolveTagSpec(ctx context.Context, tagPath string, who ident.AnyIdent) (cas.Tag, error) {
	if r.policy == CacheOk {
		v, ok := r.cache.tagSpec.Get(tagPath)
		recordCacheLookup("tag_spec", ok)
		if ok {
			raw, err := v.reconstruct()
			if err != nil {
				return cas.Tag{}, err
			}
			return raw.(cas.Tag), nil
		}
	}
	tag, err := r.store.ResolveTag(ctx, tagPath)
	if err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			err = &PackageNotFoundError{Ident: who}
		}
		r.cache.tagSpec.Add(tagPath, cacheErrorFromDomain(err))
		return cas.Tag{}, err
	}
	r.cache.tagSpec.Add(tagPath, cacheSuccess(tag))
	return tag, nil
}

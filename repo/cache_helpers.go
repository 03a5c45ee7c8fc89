package repo

import (
	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/ident"
)

// The accessors below implement the read/write path through the six
// per-address maps (spec §4.4): a read consults the cache only under
// CacheOk, a write always populates it. package_versions never caches
// an error value in practice — ListPackageVersions only fails via its
// underlying ls_tags lookup, whose errors lsTags returns without
// caching them (the ls_tags map stores success values only).

func (r *Repository) getCachedVersions(name ident.PkgName) ([]ident.Version, bool) {
	if r.policy != CacheOk {
		return nil, false
	}
	v, ok := r.cache.packageVersions.Get(name.String())
	hit := ok && v.isSuccess()
	recordCacheLookup("package_versions", hit)
	if !hit {
		return nil, false
	}
	return v.value.([]ident.Version), true
}

func (r *Repository) putCachedVersions(name ident.PkgName, versions []ident.Version) {
	r.cache.packageVersions.Add(name.String(), cacheSuccess(versions))
}

func (r *Repository) getCachedRecipe(v ident.VersionIdent) (Recipe, bool, error) {
	if r.policy != CacheOk {
		return Recipe{}, false, nil
	}
	cv, ok := r.cache.recipe.Get(v.String())
	recordCacheLookup("recipe", ok)
	if !ok {
		return Recipe{}, false, nil
	}
	raw, err := cv.reconstruct()
	if err != nil {
		return Recipe{}, true, err
	}
	return raw.(Recipe), true, nil
}

func (r *Repository) putCachedRecipe(v ident.VersionIdent, recipe Recipe) {
	r.cache.recipe.Add(v.String(), cacheSuccess(recipe))
}

func (r *Repository) putCachedRecipeErr(v ident.VersionIdent, err error) {
	r.cache.recipe.Add(v.String(), cacheErrorFromDomain(err))
}

func (r *Repository) getCachedPackage(id ident.BuildIdent) (Package, bool, error) {
	if r.policy != CacheOk {
		return Package{}, false, nil
	}
	cv, ok := r.cache.pkg.Get(id.String())
	recordCacheLookup("pkg", ok)
	if !ok {
		return Package{}, false, nil
	}
	raw, err := cv.reconstruct()
	if err != nil {
		return Package{}, true, err
	}
	return raw.(Package), true, nil
}

func (r *Repository) putCachedPackage(id ident.BuildIdent, pkg Package) {
	r.cache.pkg.Add(id.String(), cacheSuccess(pkg))
}

func (r *Repository) putCachedPackageErr(id ident.BuildIdent, err error) {
	r.cache.pkg.Add(id.String(), cacheErrorFromDomain(err))
}

// getCachedEmbedStub/putCachedEmbedStub back ReadEmbedStub. Embed stubs
// share the pkg map rather than getting a seventh map of their own:
// an id's build key is either an embedded-build sentinel or a concrete
// build's, never both, so EmbedStub and Package entries never collide
// under the same id.String() key (spec §4.1, matching spfs.rs's
// read_embed_stub, which also consults/populates the package cache).
func (r *Repository) getCachedEmbedStub(id ident.BuildIdent) (EmbedStub, bool, error) {
	if r.policy != CacheOk {
		return EmbedStub{}, false, nil
	}
	cv, ok := r.cache.pkg.Get(id.String())
	recordCacheLookup("pkg", ok)
	if !ok {
		return EmbedStub{}, false, nil
	}
	raw, err := cv.reconstruct()
	if err != nil {
		return EmbedStub{}, true, err
	}
	return raw.(EmbedStub), true, nil
}

func (r *Repository) putCachedEmbedStub(id ident.BuildIdent, stub EmbedStub) {
	r.cache.pkg.Add(id.String(), cacheSuccess(stub))
}

func (r *Repository) putCachedEmbedStubErr(id ident.BuildIdent, err error) {
	r.cache.pkg.Add(id.String(), cacheErrorFromDomain(err))
}

// getCachedComponents/putCachedComponents back the list_build_components
// map. This module caches the resolved component→digest mapping rather
// than the bare component-name list the table names, since
// ReadComponentsFromStorage's callers need the digests and recomputing
// them from a cached name list would still require re-resolving every
// component tag.
func (r *Repository) getCachedComponents(id ident.BuildIdent) (map[ident.Component]digest.Digest, bool) {
	if r.policy != CacheOk {
		return nil, false
	}
	cv, ok := r.cache.listBuildComponents.Get(id.String())
	hit := ok && cv.isSuccess()
	recordCacheLookup("list_build_components", hit)
	if !hit {
		return nil, false
	}
	return cv.value.(map[ident.Component]digest.Digest), true
}

func (r *Repository) putCachedComponents(id ident.BuildIdent, components map[ident.Component]digest.Digest) {
	r.cache.listBuildComponents.Add(id.String(), cacheSuccess(components))
}

package repo

import (
	"bytes"
	"context"
	"testing"

	digest "github.com/opencontainers/go-digest"

	"github.com/spkrepo/spk/ident"
	"github.com/spkrepo/spk/storage/cas/memcas"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	store := memcas.New("mem://" + t.Name())
	r := Open(store)
	if err := r.InitMetadata(context.Background(), "0.0.0"); err != nil {
		t.Fatalf("InitMetadata: %v", err)
	}
	return r
}

func mustName(t *testing.T, s string) ident.PkgName {
	t.Helper()
	n, err := ident.ParsePkgName(s)
	if err != nil {
		t.Fatalf("name %q: %v", s, err)
	}
	return n
}

func mustVersion(t *testing.T, s string) ident.Version {
	t.Helper()
	v, err := ident.ParseVersion(s)
	if err != nil {
		t.Fatalf("version %q: %v", s, err)
	}
	return v
}

func mustBuild(t *testing.T, s string) ident.BuildKey {
	t.Helper()
	b, err := ident.ParseBuildKey(s)
	if err != nil {
		t.Fatalf("build %q: %v", s, err)
	}
	return b
}

func commitString(t *testing.T, r *Repository, s string) digest.Digest {
	t.Helper()
	dgst, err := r.store.CommitBlob(context.Background(), bytes.NewReader([]byte(s)))
	if err != nil {
		t.Fatalf("commit %q: %v", s, err)
	}
	return dgst
}

// scenario 1: publish recipe pkg-a/1.2, list_packages and
// list_package_versions reflect it (spec §8 end-to-end scenario 1).
func TestPublishRecipeListedBack(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	name := mustName(t, "pkg-a")
	v := mustVersion(t, "1.2")

	recipe := Recipe{Ident: ident.VersionIdent{Name: name, Version: v}, Data: map[string]interface{}{}}
	if err := r.PublishRecipeToStorage(ctx, recipe, OverwriteVersion); err != nil {
		t.Fatalf("PublishRecipeToStorage: %v", err)
	}

	names, err := r.ListPackages(ctx)
	if err != nil {
		t.Fatalf("ListPackages: %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Fatalf("want [%s], got %v", name, names)
	}

	versions, err := r.ListPackageVersions(ctx, name)
	if err != nil {
		t.Fatalf("ListPackageVersions: %v", err)
	}
	if len(versions) != 1 || !versions[0].Equal(v) {
		t.Fatalf("want [%s], got %v", v, versions)
	}
}

// scenario 2: publish build with components, verify legacy tag points
// at the run digest and components round-trip (spec §8 scenario 2).
func TestPublishPackageComponentsAndLegacyTag(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	name := mustName(t, "pkg-a")
	v := mustVersion(t, "1.2")
	build := mustBuild(t, "ABCDEFGH")
	id := ident.BuildIdent{Name: name, Version: v, Build: build}

	runDigest := commitString(t, r, "run-bytes")
	buildDigest := commitString(t, r, "build-bytes")

	pkg := Package{Ident: id, Data: map[string]interface{}{}}
	if err := r.PublishPackageToStorage(ctx, pkg, map[ident.Component]digest.Digest{
		ident.Run():   runDigest,
		ident.Build(): buildDigest,
	}); err != nil {
		t.Fatalf("PublishPackageToStorage: %v", err)
	}

	got, err := r.ReadComponentsFromStorage(ctx, id)
	if err != nil {
		t.Fatalf("ReadComponentsFromStorage: %v", err)
	}
	if got[ident.Run()] != runDigest || got[ident.Build()] != buildDigest {
		t.Fatalf("components mismatch: %v", got)
	}

	legacyTag, err := r.store.ResolveTag(ctx, PathFor(RootPkg, id))
	if err != nil {
		t.Fatalf("resolve legacy tag: %v", err)
	}
	if legacyTag.Target != runDigest {
		t.Fatalf("want legacy tag at run digest %v, got %v", runDigest, legacyTag.Target)
	}
}

// scenario 4: publishing the same recipe twice with DoNotOverwriteVersion
// fails on the second call; with the default policy both succeed (spec
// §8 scenario 4).
func TestPublishRecipeDoNotOverwriteVersion(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	recipe := Recipe{Ident: ident.VersionIdent{Name: mustName(t, "pkg-a"), Version: mustVersion(t, "1.2")}, Data: map[string]interface{}{}}

	if err := r.PublishRecipeToStorage(ctx, recipe, OverwriteVersion); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := r.PublishRecipeToStorage(ctx, recipe, DoNotOverwriteVersion); !IsVersionExists(err) {
		t.Fatalf("expected VersionExistsError, got %v", err)
	}
	if err := r.PublishRecipeToStorage(ctx, recipe, OverwriteVersion); err != nil {
		t.Fatalf("second overwrite publish: %v", err)
	}
}

// scenario 5 variant: removing a build published with a run component
// tag beside its legacy tag succeeds and subsequent reads report
// PackageNotFound (spec §8 scenario 5).
func TestRemovePackageThenReadNotFound(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	name := mustName(t, "pkg-a")
	v := mustVersion(t, "1.2")
	build := mustBuild(t, "ABCDEFGH")
	id := ident.BuildIdent{Name: name, Version: v, Build: build}

	dgst := commitString(t, r, "src-bytes")
	pkg := Package{Ident: id, Data: map[string]interface{}{}}
	if err := r.PublishPackageToStorage(ctx, pkg, map[ident.Component]digest.Digest{ident.Run(): dgst}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := r.RemovePackageFromStorage(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := r.ReadPackage(ctx, id); !IsPackageNotFound(err) {
		t.Fatalf("expected PackageNotFound after remove, got %v", err)
	}
}

// spec §8 boundary: publishing 1.0 and querying with 1.0.0.0 still
// finds the build; trailing zeros are semantically equivalent.
func TestTrailingZeroVersionQuery(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	name := mustName(t, "pkg-a")
	v := mustVersion(t, "1.0")
	build := mustBuild(t, "ABCDEFGH")
	id := ident.BuildIdent{Name: name, Version: v, Build: build}

	dgst := commitString(t, r, "bytes")
	pkg := Package{Ident: id, Data: map[string]interface{}{}}
	if err := r.PublishPackageToStorage(ctx, pkg, map[ident.Component]digest.Digest{ident.Run(): dgst}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	queryVersion := mustVersion(t, "1.0.0.0")
	builds, err := r.GetConcretePackageBuilds(ctx, ident.VersionIdent{Name: name, Version: queryVersion})
	if err != nil {
		t.Fatalf("GetConcretePackageBuilds: %v", err)
	}
	found := false
	for _, b := range builds {
		if b.Build.String() == build.String() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected to find build %s among %v", build, builds)
	}
}

// ReadEmbedStub consults and populates the pkg cache map the same as
// ReadPackage: a second read under CacheOk must not need the store.
func TestReadEmbedStubCachesAcrossReads(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	embedder := ident.FromBuildIdent(ident.BuildIdent{
		Name:    mustName(t, "pkg-a"),
		Version: mustVersion(t, "1.0"),
		Build:   mustBuild(t, "ABCDEFGH"),
	})
	stubID := ident.BuildIdent{
		Name:    mustName(t, "pkg-b"),
		Version: mustVersion(t, "2.0"),
		Build:   ident.EmbeddedBuildKey(embedder),
	}

	stub := EmbedStub{Ident: stubID, Embedder: embedder, Data: map[string]interface{}{}}
	if err := r.PublishEmbedStubToStorage(ctx, stub); err != nil {
		t.Fatalf("PublishEmbedStubToStorage: %v", err)
	}

	got, err := r.ReadEmbedStub(ctx, stubID)
	if err != nil {
		t.Fatalf("ReadEmbedStub: %v", err)
	}
	if got.Embedder.String() != embedder.String() {
		t.Fatalf("want embedder %s, got %s", embedder, got.Embedder)
	}

	if _, ok, _ := r.getCachedEmbedStub(stubID); !ok {
		t.Fatalf("expected ReadEmbedStub to populate the pkg cache")
	}

	got2, err := r.ReadEmbedStub(ctx, stubID)
	if err != nil {
		t.Fatalf("second ReadEmbedStub: %v", err)
	}
	if got2.Embedder.String() != embedder.String() {
		t.Fatalf("want embedder %s, got %s", embedder, got2.Embedder)
	}
}

// scenario 6: upgrading a repository with one legacy build advances
// metadata and synthesizes component tags; re-running reports
// "Nothing to do." (spec §8 scenario 6).
func TestUpgradeSynthesizesComponentsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t)
	name := mustName(t, "pkg-a")
	v := mustVersion(t, "1.0")
	build := mustBuild(t, "ABCDEFGH")
	id := ident.BuildIdent{Name: name, Version: v, Build: build}

	dgst := commitString(t, r, "bytes")
	// Publish only the legacy tag and spec tag directly, bypassing
	// PublishPackageToStorage's component-tag step, to simulate a
	// pre-components repository.
	if _, err := r.store.PushTag(ctx, PathFor(RootPkg, id), dgst); err != nil {
		t.Fatalf("push legacy: %v", err)
	}
	specData, err := MarshalSpec(Package{Ident: id, Data: map[string]interface{}{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	specDigest, err := r.store.CommitBlob(ctx, bytes.NewReader(specData))
	if err != nil {
		t.Fatalf("commit spec: %v", err)
	}
	if _, err := r.store.PushTag(ctx, PathFor(RootSpec, id), specDigest); err != nil {
		t.Fatalf("push spec: %v", err)
	}

	msg, err := r.Upgrade(ctx)
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if msg == "Nothing to do." {
		t.Fatalf("expected upgrade to do work on first run")
	}

	components, err := r.ReadComponentsFromStorage(ctx, id)
	if err != nil {
		t.Fatalf("ReadComponentsFromStorage: %v", err)
	}
	if components[ident.Run()] != dgst || components[ident.Build()] != dgst {
		t.Fatalf("expected synthesized run/build components, got %v", components)
	}

	msg2, err := r.Upgrade(ctx)
	if err != nil {
		t.Fatalf("second Upgrade: %v", err)
	}
	if msg2 != "Nothing to do." {
		t.Fatalf("expected idempotent second upgrade, got %q", msg2)
	}
}

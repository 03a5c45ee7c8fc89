package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spkrepo/spk/ident"
	"github.com/spkrepo/spk/internal/dcontext"
	"github.com/spkrepo/spk/storage/cas"
)

// embeddedProvidersField is the Package.Data key listing the
// identifiers of packages this build embeds. No direct teacher
// analogue exists for this; the field name and shape are original to
// this module's rendering of the embed-stub relationship (spec §3,
// §4.1 upgrade step (i)).
const embeddedProvidersField = "embedded"

// Upgrade reads the repository metadata blob, and — if the stored
// version is behind CurrentRepositoryVersion — walks every
// published name × version × build, re-creating missing embed stubs
// and synthesizing component tags for legacy-form packages, then
// writes the new metadata version. Idempotent: re-running over a
// fully-upgraded repository returns "Nothing to do." (spec §4.1, §8
// scenario 6). Not safe to run concurrently with publishers targeting
// the same names (spec §5) — callers must serialize externally.
func (r *Repository) Upgrade(ctx context.Context) (string, error) {
	log := dcontext.GetLogger(ctx)

	current, err := r.readMetadata(ctx)
	if err != nil {
		return "", err
	}

	currentVersion, err := ident.ParseVersion(current.Version)
	if err != nil {
		return "", &InvalidRepositoryMetadataError{Message: err.Error()}
	}
	target, err := ident.ParseVersion(CurrentRepositoryVersion)
	if err != nil {
		return "", err
	}
	if currentVersion.Compare(target) >= 0 {
		return "Nothing to do.", nil
	}

	names, err := r.ListPackages(ctx)
	if err != nil {
		return "", err
	}

	upgraded := 0
	for _, name := range names {
		versions, err := r.ListPackageVersions(ctx, name)
		if err != nil {
			return "", err
		}
		for _, v := range versions {
			vid := ident.VersionIdent{Name: name, Version: v}
			builds, err := r.ListPackageBuilds(ctx, vid)
			if err != nil {
				return "", err
			}
			for _, build := range builds {
				if build.Build.IsEmbedded() {
					continue
				}
				if err := r.upgradeBuild(ctx, build); err != nil {
					return "", fmt.Errorf("upgrade %s: %w", build, err)
				}
				upgraded++
				log.Infof("upgraded %s", build)
			}
		}
	}

	if err := r.writeMetadata(ctx, Metadata{Version: CurrentRepositoryVersion}); err != nil {
		return "", err
	}
	return fmt.Sprintf("upgraded %d build(s) to repository version %s", upgraded, CurrentRepositoryVersion), nil
}

// upgradeBuild recreates missing embed stubs for build's embedded
// providers, then, if build is still stored in legacy form, synthesizes
// its component tags from the legacy tag.
func (r *Repository) upgradeBuild(ctx context.Context, build ident.BuildIdent) error {
	if err := r.recreateEmbedStubs(ctx, build); err != nil {
		return err
	}
	return r.synthesizeComponentTags(ctx, build)
}

func (r *Repository) recreateEmbedStubs(ctx context.Context, build ident.BuildIdent) error {
	pkg, err := r.ReadPackage(ctx, build)
	if err != nil {
		if IsPackageNotFound(err) {
			return nil // no package spec (e.g. recipe-only); nothing to embed
		}
		return err
	}

	raw, ok := pkg.Data[embeddedProvidersField].([]interface{})
	if !ok {
		return nil
	}

	embedder := ident.FromBuildIdent(build)
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		providerIdent, err := ident.ParseAnyIdent(s)
		if err != nil || providerIdent.Version == nil {
			continue
		}

		stubBuild := ident.BuildIdent{
			Name:    providerIdent.Name,
			Version: *providerIdent.Version,
			Build:   ident.EmbeddedBuildKey(embedder),
		}
		specPath := PathFor(RootSpec, stubBuild)
		has, err := r.store.HasTag(ctx, specPath)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		stub := EmbedStub{Ident: stubBuild, Embedder: embedder, Data: map[string]interface{}{}}
		if err := r.PublishEmbedStubToStorage(ctx, stub); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) synthesizeComponentTags(ctx context.Context, build ident.BuildIdent) error {
	var stored StoredPackage
	err := r.WithCachePolicy(BypassCache, func() error {
		var err error
		stored, err = LookupPackage(ctx, r.store, build)
		return err
	})
	if err != nil {
		if IsPackageNotFound(err) {
			return nil
		}
		return err
	}
	if stored.HasComponents() {
		return nil // already migrated
	}

	legacyPath := PathFor(RootPkg, build)
	legacyTag, err := r.store.ResolveTag(ctx, legacyPath)
	if err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			return nil
		}
		return err
	}

	targets := []ident.Component{ident.Build(), ident.Run()}
	if build.Build.IsSrc() {
		targets = []ident.Component{ident.Source()}
	}

	for _, c := range targets {
		componentPath := ComponentPath(build, c)
		has, err := r.store.HasTag(ctx, componentPath)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := r.store.PushTagPreservingMetadata(ctx, componentPath, legacyTag); err != nil {
			return err
		}
	}

	r.cache.purge()
	return nil
}

// readMetadata returns the stored spk/repo metadata, or the zero
// version "0.0.0" if the repository has never had one written
// (spfs.rs treats an absent metadata tag as the oldest possible
// version rather than an error, so a brand-new repository still
// upgrades). InvalidRepositoryMetadataError is reserved for a present
// but unparseable blob.
func (r *Repository) readMetadata(ctx context.Context) (Metadata, error) {
	tag, err := r.store.ResolveTag(ctx, MetadataTagPath)
	if err != nil {
		if errors.Is(err, cas.ErrUnknownReference) {
			return Metadata{Version: "0.0.0"}, nil
		}
		return Metadata{}, err
	}
	rc, _, err := r.store.OpenPayload(ctx, tag.Target)
	if err != nil {
		return Metadata{}, &FileReadError{Filename: MetadataTagPath, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Metadata{}, &FileReadError{Filename: MetadataTagPath, Err: err}
	}
	return ParseMetadata(data)
}

func (r *Repository) writeMetadata(ctx context.Context, m Metadata) error {
	data, err := m.marshal()
	if err != nil {
		return err
	}
	dgst, err := r.store.CommitBlob(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if _, err := r.store.PushTag(ctx, MetadataTagPath, dgst); err != nil {
		return err
	}
	r.cache.purge()
	return nil
}

// InitMetadata writes an spk/repo blob recording the given version.
// Used by new repositories and by tests that need a well-formed metadata
// tag before exercising Upgrade.
func (r *Repository) InitMetadata(ctx context.Context, version string) error {
	return r.writeMetadata(ctx, Metadata{Version: version})
}

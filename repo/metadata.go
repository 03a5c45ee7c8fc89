package repo

import (
	"context"
	"io"

	"gopkg.in/yaml.v2"

	"github.com/spkrepo/spk/storage/cas"
)

// CurrentRepositoryVersion is the metadata version this module writes
// at the end of a successful upgrade (spec §4.1 upgrade, §8 scenario 6).
const CurrentRepositoryVersion = "1.0.0"

// MetadataTagPath is the fixed tag holding the repository metadata
// blob (spec §6).
const MetadataTagPath = "spk/repo"

// Metadata is the YAML document stored at MetadataTagPath.
type Metadata struct {
	Version string `yaml:"version"`
}

// ParseMetadata parses the spk/repo blob, reporting
// InvalidRepositoryMetadataError on failure (spec §7).
func ParseMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Metadata{}, &InvalidRepositoryMetadataError{Message: err.Error()}
	}
	if m.Version == "" {
		return Metadata{}, &InvalidRepositoryMetadataError{Message: "missing version field"}
	}
	return m, nil
}

func (m Metadata) marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, &InvalidRepositoryMetadataError{Message: err.Error()}
	}
	return data, nil
}

// ReadRepositoryVersion resolves path (normally MetadataTagPath) against
// store and returns the stored version string, or "" if the tag has never
// been written. It takes a bare cas.Store rather than a *Repository so the
// network server's repository metadata service (server/rpc, spec §4.5,
// "wraps the CAS directly") can report repository identity without routing
// through the C4 façade or its cache.
func ReadRepositoryVersion(ctx context.Context, store cas.Store, path string) (string, error) {
	tag, err := store.ResolveTag(ctx, path)
	if err != nil {
		if err == cas.ErrUnknownReference {
			return "", nil
		}
		return "", err
	}
	rc, _, err := store.OpenPayload(ctx, tag.Target)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	m, err := ParseMetadata(data)
	if err != nil {
		return "", err
	}
	return m.Version, nil
}

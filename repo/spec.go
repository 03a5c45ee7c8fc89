package repo

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/spkrepo/spk/ident"
)

// Recipe, Package, and EmbedStub are the three YAML-deserializable
// documents a spec tag can point to (spec §3, §6). The repository does
// not interpret their contents beyond reading the ident field during
// publish; everything else round-trips through Data opaquely, since
// the recipe/package schema itself belongs to an external Spec
// collaborator this module does not redefine.
type Recipe struct {
	Ident ident.VersionIdent
	Data  map[string]interface{}
}

type Package struct {
	Ident ident.BuildIdent
	Data  map[string]interface{}
}

type EmbedStub struct {
	Ident    ident.BuildIdent
	Embedder ident.AnyIdent
	Data     map[string]interface{}
}

const identField = "pkg"

func (r Recipe) MarshalYAML() (interface{}, error) {
	return withIdentField(r.Data, r.Ident.String()), nil
}

func (r *Recipe) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw, identStr, err := splitIdentField(unmarshal)
	if err != nil {
		return err
	}
	id, err := ident.ParseAnyIdent(identStr)
	if err != nil {
		return &InvalidPackageSpecError{Message: fmt.Sprintf("recipe ident %q: %v", identStr, err)}
	}
	if id.Version == nil {
		return &InvalidPackageSpecError{Ident: id, Message: "recipe ident missing version"}
	}
	r.Ident = ident.VersionIdent{Name: id.Name, Version: *id.Version}
	r.Data = raw
	return nil
}

func (p Package) MarshalYAML() (interface{}, error) {
	return withIdentField(p.Data, p.Ident.String()), nil
}

func (p *Package) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw, identStr, err := splitIdentField(unmarshal)
	if err != nil {
		return err
	}
	id, err := ident.ParseAnyIdent(identStr)
	if err != nil {
		return &InvalidPackageSpecError{Message: fmt.Sprintf("package ident %q: %v", identStr, err)}
	}
	if id.Version == nil || id.Build == nil {
		return &InvalidPackageSpecError{Ident: id, Message: "package ident missing version or build"}
	}
	p.Ident = ident.BuildIdent{Name: id.Name, Version: *id.Version, Build: *id.Build}
	p.Data = raw
	return nil
}

func (e EmbedStub) MarshalYAML() (interface{}, error) {
	out := withIdentField(e.Data, e.Ident.String())
	out["embedded_by"] = e.Embedder.String()
	return out, nil
}

func (e *EmbedStub) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw, identStr, err := splitIdentField(unmarshal)
	if err != nil {
		return err
	}
	id, err := ident.ParseAnyIdent(identStr)
	if err != nil {
		return &InvalidPackageSpecError{Message: fmt.Sprintf("embed stub ident %q: %v", identStr, err)}
	}
	if id.Version == nil || id.Build == nil {
		return &InvalidPackageSpecError{Ident: id, Message: "embed stub ident missing version or build"}
	}
	e.Ident = ident.BuildIdent{Name: id.Name, Version: *id.Version, Build: *id.Build}

	embedderStr, _ := raw["embedded_by"].(string)
	delete(raw, "embedded_by")
	if embedderStr != "" {
		embedder, err := ident.ParseAnyIdent(embedderStr)
		if err != nil {
			return &InvalidPackageSpecError{Ident: id, Message: fmt.Sprintf("embedder ident %q: %v", embedderStr, err)}
		}
		e.Embedder = embedder
	}
	e.Data = raw
	return nil
}

func withIdentField(data map[string]interface{}, identStr string) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[identField] = identStr
	return out
}

func splitIdentField(unmarshal func(interface{}) error) (map[string]interface{}, string, error) {
	var raw map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return nil, "", &InvalidPackageSpecError{Message: err.Error()}
	}
	identStr, _ := raw[identField].(string)
	if identStr == "" {
		return nil, "", &InvalidPackageSpecError{Message: fmt.Sprintf("missing %q field", identField)}
	}
	delete(raw, identField)
	return raw, identStr, nil
}

// MarshalSpec serializes any of Recipe, Package, EmbedStub to YAML
// bytes for a spec tag payload.
func MarshalSpec(v interface{}) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, &SpkSpecError{Err: err}
	}
	return data, nil
}

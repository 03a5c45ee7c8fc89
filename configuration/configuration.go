package configuration

import (
	"fmt"
	"io"
	"reflect"

	"gopkg.in/yaml.v2"
)

// Configuration is a versioned spk-server configuration, provided by a YAML
// file and optionally overlaid by environment variables (SPK_SECTION_FIELD).
//
// Note that yaml field names should never include _ characters, since this
// is the separator used in environment variable names.
type Configuration struct {
	// Version gates the structure of the rest of the configuration file.
	Version Version `yaml:"version"`

	// Log configures the leveled logger shared by every package through
	// internal/dcontext.
	Log Log `yaml:"log"`

	// CAS is the content-addressed store this repository wraps.
	CAS CAS `yaml:"cas"`

	// Cache bounds the per-address in-memory cache (spec §4.4).
	Cache Cache `yaml:"cache,omitempty"`

	// RPC configures the gRPC listener (spec §4.5, C5).
	RPC RPC `yaml:"rpc"`

	// HTTP configures the payload HTTP listener (spec §4.5, §6).
	HTTP HTTP `yaml:"http"`
}

// Log supports setting parameters related to the logging subsystem.
type Log struct {
	// Level is the granularity at which repository operations are logged.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default logrus formatter ("text", "json",
	// or "logstash" via the bshuster-repo/logrus-logstash-hook formatter).
	Formatter string `yaml:"formatter,omitempty"`

	// Fields attaches static key/value fields to every log entry, for
	// example {"environment": "staging"}.
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// Loglevel is the level at which repository operations are logged.
type Loglevel string

// UnmarshalYAML implements the yaml.Unmarshaler interface for Loglevel.
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var level string
	if err := unmarshal(&level); err != nil {
		return err
	}

	switch level {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", level)
	}

	*loglevel = Loglevel(level)
	return nil
}

// CAS configures the content-addressed store collaborator this repository
// wraps (spec §1, §6). The CAS itself is an external collaborator; this
// struct only carries the address repo.Open's cache registry key is drawn
// from (spec §4.4) and any backend-specific parameters it needs.
type CAS struct {
	// Address identifies the CAS backend, e.g. "mem://local" for the
	// in-memory fake or a real backend's connection string.
	Address string `yaml:"address"`

	// Parameters is an arbitrary map of backend-specific configuration,
	// following the teacher's storage-driver parameter map convention.
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`
}

// Cache bounds the per-address cache described in spec §4.4.
type Cache struct {
	// MaxEntriesPerMap is parsed from the configuration file but is not
	// read by the repo package: each of the six per-address LRU maps is
	// always sized by repo.cacheMapSize.
	MaxEntriesPerMap int `yaml:"maxentriespermap,omitempty"`
}

// RPC configures the gRPC listener serving the four C5 services.
type RPC struct {
	// Addr is the bind address, e.g. ":7737".
	Addr string `yaml:"addr"`
}

// HTTP configures the payload HTTP listener (spec §4.5, §6).
type HTTP struct {
	// Addr is the bind address, e.g. ":7787".
	Addr string `yaml:"addr"`

	// PayloadURLRoot is the externally-reachable URL root used to build
	// payload download URLs returned by the RPC services.
	PayloadURLRoot string `yaml:"payloadurlroot,omitempty"`

	// TLS configures optional TLS termination, including Let's Encrypt
	// via golang.org/x/crypto/acme/autocert.
	TLS HTTPTLS `yaml:"tls,omitempty"`

	// Headers is a set of headers to include in HTTP responses, following
	// the teacher's convention for e.g. X-Content-Type-Options.
	Headers map[string][]string `yaml:"headers,omitempty"`

	// Debug configures an optional debug/metrics listener, separate from
	// the payload listener, following the teacher's HTTP.Debug.
	Debug HTTPDebug `yaml:"debug,omitempty"`
}

// HTTPDebug configures the optional debug/Prometheus listener.
type HTTPDebug struct {
	// Addr is the bind address for the debug listener, e.g. ":5001". Empty
	// disables the debug server entirely.
	Addr string `yaml:"addr,omitempty"`

	Prometheus struct {
		Enabled bool   `yaml:"enabled,omitempty"`
		Path    string `yaml:"path,omitempty"`
	} `yaml:"prometheus,omitempty"`
}

// HTTPTLS configures TLS termination for the payload listener.
type HTTPTLS struct {
	Certificate string `yaml:"certificate,omitempty"`
	Key         string `yaml:"key,omitempty"`
	LetsEncrypt struct {
		CacheFile string   `yaml:"cachefile,omitempty"`
		Email     string   `yaml:"email,omitempty"`
		Hosts     []string `yaml:"hosts,omitempty"`
	} `yaml:"letsencrypt,omitempty"`
}

// Parse parses an input configuration yaml document into a Configuration
// struct. It generates environment variable names matching the same scheme
// as the configuration fields, following the teacher's "SPK_SECTION_FIELD"
// convention. For example, the configuration field Log.Level is mapped to
// SPK_LOG_LEVEL. Env vars take precedence over the yaml document.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("spk", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				if config, ok := c.(*Configuration); ok {
					return config, nil
				}
				return nil, fmt.Errorf("expected *Configuration, received %#v", c)
			},
		},
	})

	config := new(Configuration)
	if err := p.Parse(in, config); err != nil {
		return nil, err
	}

	// Unset bind addresses fall back to the defaults of spec §4.5.
	if config.RPC.Addr == "" {
		config.RPC.Addr = ":7737"
	}
	if config.HTTP.Addr == "" {
		config.HTTP.Addr = ":7787"
	}

	return config, nil
}

// Marshal serializes a Configuration back into its yaml representation,
// e.g. for an operator inspecting effective configuration.
func Marshal(config *Configuration) ([]byte, error) {
	return yaml.Marshal(config)
}

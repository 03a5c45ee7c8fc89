package configuration

import (
	"bytes"
	"os"
	"reflect"
	"testing"

	"gopkg.in/yaml.v2"
)

// configStruct is a canonical example configuration, which should map to configYamlV0_1.
var configStruct = Configuration{
	Version: "0.1",
	Log: Log{
		Level:     "info",
		Formatter: "text",
		Fields:    map[string]interface{}{"environment": "test"},
	},
	CAS: CAS{
		Address: "mem://local",
		Parameters: map[string]interface{}{
			"rootdirectory": "/spk",
		},
	},
	Cache: Cache{
		MaxEntriesPerMap: 8192,
	},
	RPC: RPC{
		Addr: ":7737",
	},
	HTTP: HTTP{
		Addr:           ":7787",
		PayloadURLRoot: "https://spk.example.com",
		Headers: map[string][]string{
			"X-Content-Type-Options": {"nosniff"},
		},
	},
}

var configYamlV0_1 = `
version: 0.1
log:
  level: info
  formatter: text
  fields:
    environment: test
cas:
  address: mem://local
  parameters:
    rootdirectory: /spk
cache:
  maxentriespermap: 8192
rpc:
  addr: :7737
http:
  addr: :7787
  payloadurlroot: https://spk.example.com
  headers:
    X-Content-Type-Options:
      - nosniff
`

// TestMarshalRoundtrip builds a Configuration, serializes it, and confirms
// yaml.Unmarshal recovers the same value, catching accidental field-tag
// drift as the schema grows.
func TestMarshalRoundtrip(t *testing.T) {
	data, err := Marshal(&configStruct)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var recovered Configuration
	if err := yaml.Unmarshal(data, &recovered); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(configStruct, recovered) {
		t.Fatalf("roundtrip mismatch:\nwant %#v\ngot  %#v", configStruct, recovered)
	}
}

// TestParseSimple validates that configYamlV0_1 can be parsed into a struct
// matching configStruct, without any environment variable overrides.
func TestParseSimple(t *testing.T) {
	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(configStruct, *config) {
		t.Fatalf("parse mismatch:\nwant %#v\ngot  %#v", configStruct, *config)
	}
}

// TestParseWithDifferentEnvValueOverrides validates that an environment
// variable (SPK_RPC_ADDR) overrides the value the yaml document sets for
// the same field.
func TestParseWithDifferentEnvValueOverrides(t *testing.T) {
	os.Setenv("SPK_RPC_ADDR", ":9999")
	defer os.Unsetenv("SPK_RPC_ADDR")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if config.RPC.Addr != ":9999" {
		t.Fatalf("want RPC.Addr overridden to :9999, got %q", config.RPC.Addr)
	}
}

// TestParseInvalidLoglevelFails confirms the custom Loglevel unmarshaler
// rejects unrecognized levels instead of silently accepting them.
func TestParseInvalidLoglevelFails(t *testing.T) {
	invalid := `
version: 0.1
log:
  level: verbose
cas:
  address: mem://local
rpc:
  addr: :7737
http:
  addr: :7787
`
	if _, err := Parse(bytes.NewReader([]byte(invalid))); err == nil {
		t.Fatalf("expected error for invalid loglevel")
	}
}

// TestParseUnsupportedVersionFails confirms the parser rejects configuration
// documents declaring a version with no registered VersionedParseInfo.
func TestParseUnsupportedVersionFails(t *testing.T) {
	unsupported := `
version: 9.9
rpc:
  addr: :7737
`
	if _, err := Parse(bytes.NewReader([]byte(unsupported))); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

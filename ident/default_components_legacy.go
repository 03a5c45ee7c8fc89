//go:build spk_legacy_components

package ident

// Legacy build, for sites migrating from pre-component packages: every
// build defaults to the All component (spec §4.6).
const defaultComponentsIncludeAllBuildFlag = true

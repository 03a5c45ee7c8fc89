//go:build !spk_legacy_components

package ident

// Default build: Run/Build component selection (spec §4.6).
const defaultComponentsIncludeAllBuildFlag = false

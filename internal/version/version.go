// Package version provides the version of the indra binary.
package version

import (
	_ "embed"
	"strings"
)

// VERSION is the release version, used when the binary was built without
// -ldflags, e.g. by go install.
//
//go:embed VERSION
var VERSION string

// Get returns the embedded version with a "v" prefix.
func Get() string {
	return "v" + strings.TrimSpace(VERSION)
}

// Resolve returns ldflagsVersion unless it is empty or "dev", in which case
// the embedded version is used.
func Resolve(ldflagsVersion string) string {
	if ldflagsVersion == "" || ldflagsVersion == "dev" {
		return Get()
	}
	return ldflagsVersion
}

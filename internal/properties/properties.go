// Package properties adapts key-value property sources (build properties,
// environment variables, configuration files) into the typed inputs the
// toolchain and publishing policies consume.
package properties

import (
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/publish"
)

// Well-known property names.
const (
	ForceSign                  = "forceSign"
	StrictMultireleaseVersions = "strictMultireleaseVersions"
	// CI is set by most CI systems, including GitHub Actions and Travis.
	CI = "CI"
)

// Source looks up string properties by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// Map is a Source backed by a map.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Env is a Source backed by the process environment.
type Env struct{}

// Lookup implements Source.
func (Env) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Folded is a Source whose keys match case-insensitively.
type Folded map[string]string

// NewFolded copies m, folding its keys to lower case.
func NewFolded(m map[string]string) Folded {
	f := make(Folded, len(m))
	for k, v := range m {
		f[strings.ToLower(k)] = v
	}
	return f
}

// Lookup implements Source.
func (f Folded) Lookup(key string) (string, bool) {
	v, ok := f[strings.ToLower(key)]
	return v, ok
}

// GradleEnvPrefix is the prefix Gradle uses for project properties passed
// through the environment.
const GradleEnvPrefix = "ORG_GRADLE_PROJECT_"

// PrefixedEnv is a Source reading environment variables named Prefix+key.
type PrefixedEnv struct {
	Prefix string
}

// Lookup implements Source.
func (e PrefixedEnv) Lookup(key string) (string, bool) {
	return os.LookupEnv(e.Prefix + key)
}

// Viper is a Source backed by a viper instance. Keys are matched
// case-insensitively, as viper does, below Prefix. Expand, when set, is
// applied to every value found.
type Viper struct {
	V      *viper.Viper
	Prefix string
	Expand func(string) string
}

// Lookup implements Source.
func (s Viper) Lookup(key string) (string, bool) {
	if s.V == nil || !s.V.IsSet(s.Prefix+key) {
		return "", false
	}
	value := s.V.GetString(s.Prefix + key)
	if s.Expand != nil {
		value = s.Expand(value)
	}
	return value, true
}

// Chain consults each source in order and returns the first hit.
type Chain []Source

// Lookup implements Source.
func (c Chain) Lookup(key string) (string, bool) {
	for _, src := range c {
		if v, ok := src.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// Inputs are the typed values read from the build and environment sources.
type Inputs struct {
	// ForceSign is true when the forceSign property is present, whatever its value.
	ForceSign bool
	// StrictVersions is nil when neither strictMultireleaseVersions nor CI is set.
	StrictVersions *bool
}

// Resolve reads Inputs. build holds build properties; env holds environment
// variables and is only consulted for CI.
func Resolve(build, env Source) (Inputs, error) {
	var in Inputs
	_, in.ForceSign = build.Lookup(ForceSign)

	strict, err := resolveStrict(build, env)
	if err != nil {
		return Inputs{}, err
	}
	in.StrictVersions = strict
	return in, nil
}

func resolveStrict(build, env Source) (*bool, error) {
	const op = "properties.resolveStrict"

	key := StrictMultireleaseVersions
	raw, ok := build.Lookup(key)
	if !ok && env != nil {
		key = CI
		raw, ok = env.Lookup(key)
	}
	if !ok {
		return nil, nil
	}
	v, err := ParseBool(raw)
	if err != nil {
		return nil, ierrors.ConfigWrap(err, op, "invalid boolean for "+key)
	}
	return &v, nil
}

// ParseBool parses a boolean property. Blank values are false; anything else
// cast cannot interpret is an error.
func ParseBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return cast.ToBoolE(strings.ToLower(raw))
}

// Credentials returns a lookup reporting which of a repository's credential
// properties are present.
func Credentials(src Source) publish.CredentialLookup {
	return func(repo publish.RemoteRepository) publish.Credentials {
		_, user := src.Lookup(repo.UsernameProperty())
		_, pass := src.Lookup(repo.PasswordProperty())
		return publish.Credentials{Username: user, Password: pass}
	}
}

// Parse turns "key=value" pairs, as given on a command line, into a Map.
// A pair without "=" sets the key to an empty string.
func Parse(pairs []string) Map {
	m := make(Map, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		m[strings.TrimSpace(key)] = value
	}
	return m
}

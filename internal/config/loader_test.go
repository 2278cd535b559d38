package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

const sampleYAML = `project:
  name: adventure
  group: net.kyori
  version: 4.0.0-SNAPSHOT
  description: A user-interface library
toolchain:
  target: 17
  test_with: [21]
publishing:
  properties:
    centralUsername: ${CENTRAL_USER}
repositories:
  - name: central
    url: https://central.example.com/releases
    releases: true
  - name: snapshots
    url: ${SNAPSHOT_URL:-https://snapshots.example.com}
    snapshots: true
metadata:
  github:
    user: KyoriPowered
    repo: adventure
    ci: true
  license:
    id: mit
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromDirectory_YAML(t *testing.T) {
	t.Setenv("CENTRAL_USER", "deployer")

	dir := t.TempDir()
	writeFile(t, dir, "indra.yaml", sampleYAML)

	cfg, err := LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadFromDirectory() error = %v", err)
	}

	if cfg.Project.Name != "adventure" || cfg.Project.Group != "net.kyori" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Toolchain.Target != 17 {
		t.Errorf("toolchain.target = %d, want 17", cfg.Toolchain.Target)
	}
	if cfg.Toolchain.MinimumToolchain != 11 {
		t.Errorf("toolchain.minimum_toolchain = %d, want default 11", cfg.Toolchain.MinimumToolchain)
	}
	if cfg.Toolchain.StrictVersions != nil {
		t.Errorf("toolchain.strict_versions should be unset, got %v", *cfg.Toolchain.StrictVersions)
	}
	if len(cfg.Toolchain.TestWith) != 1 || cfg.Toolchain.TestWith[0] != 21 {
		t.Errorf("toolchain.test_with = %v", cfg.Toolchain.TestWith)
	}
	if cfg.Publishing.RequireTagForRelease {
		t.Error("publishing.require_tag_for_release should default to false")
	}
	if len(cfg.Repositories) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(cfg.Repositories))
	}
	if cfg.Repositories[1].URL != "https://snapshots.example.com" {
		t.Errorf("expected default expansion, got %q", cfg.Repositories[1].URL)
	}
	// viper folds keys to lower case
	if got := cfg.Publishing.Properties["centralusername"]; got != "deployer" {
		t.Errorf("expected property expansion, got %q", got)
	}
	if cfg.Metadata.GitHub == nil || cfg.Metadata.GitHub.Repo != "adventure" {
		t.Errorf("metadata.github = %+v", cfg.Metadata.GitHub)
	}
	if cfg.Output.Format != "text" || cfg.Output.LogLevel != "info" {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDirectory() error = %v", err)
	}
	defaults := DefaultConfig()
	if cfg.Project.Version != defaults.Project.Version {
		t.Errorf("project.version = %q, want %q", cfg.Project.Version, defaults.Project.Version)
	}
	if cfg.Toolchain.Target != defaults.Toolchain.Target {
		t.Errorf("toolchain.target = %d, want %d", cfg.Toolchain.Target, defaults.Toolchain.Target)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INDRA_PROJECT_VERSION", "2.0.0")
	t.Setenv("INDRA_TOOLCHAIN_STRICT_VERSIONS", "true")

	dir := t.TempDir()
	writeFile(t, dir, "indra.yaml", sampleYAML)

	cfg, err := LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadFromDirectory() error = %v", err)
	}
	if cfg.Project.Version != "2.0.0" {
		t.Errorf("project.version = %q, want env override", cfg.Project.Version)
	}
	if cfg.Toolchain.StrictVersions == nil || !*cfg.Toolchain.StrictVersions {
		t.Errorf("toolchain.strict_versions = %v, want true", cfg.Toolchain.StrictVersions)
	}
}

func TestLoader_PropertySource(t *testing.T) {
	t.Setenv("CENTRAL_USER", "deployer")
	t.Setenv("INDRA_PUBLISHING_PROPERTIES_CENTRALPASSWORD", "secret")

	dir := t.TempDir()
	writeFile(t, dir, "indra.yaml", sampleYAML)

	loader := NewLoader().WithDirectory(dir)
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	src := loader.PropertySource()

	if v, ok := src.Lookup("centralUsername"); !ok || v != "deployer" {
		t.Errorf("centralUsername = %q, %t, want expanded file value", v, ok)
	}
	if v, ok := src.Lookup("centralPassword"); !ok || v != "secret" {
		t.Errorf("centralPassword = %q, %t, want environment value", v, ok)
	}
	if _, ok := src.Lookup("snapshotsPassword"); ok {
		t.Error("snapshotsPassword should not be set")
	}
}

func TestLoad_MalformedStrictVersions(t *testing.T) {
	t.Setenv("INDRA_TOOLCHAIN_STRICT_VERSIONS", "sometimes")

	_, err := LoadFromDirectory(t.TempDir())
	if err == nil {
		t.Fatal("expected error for malformed boolean")
	}
	if !ierrors.IsKind(err, ierrors.KindConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestLoadFromFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.toml", `
[project]
group = "net.kyori"
version = "1.0.0"

[toolchain]
target = 11
strict_versions = false

[[repositories]]
name = "central"
url = "https://central.example.com"
releases = true
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Toolchain.StrictVersions == nil || *cfg.Toolchain.StrictVersions {
		t.Errorf("toolchain.strict_versions = %v, want explicit false", cfg.Toolchain.StrictVersions)
	}
	if len(cfg.Repositories) != 1 || !cfg.Repositories[0].Releases {
		t.Errorf("repositories = %+v", cfg.Repositories)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !ierrors.IsKind(err, ierrors.KindConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestWriteConfig(t *testing.T) {
	for _, name := range []string{"indra.yaml", "indra.toml", "indra.json"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := DefaultConfig()
			cfg.Project.Group = "net.kyori"
			cfg.Repositories = []RepositoryConfig{{Name: "central", URL: "https://central.example.com", Releases: true}}

			path := filepath.Join(dir, name)
			if err := WriteConfig(cfg, path); err != nil {
				t.Fatalf("WriteConfig() error = %v", err)
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			if loaded.Project.Group != "net.kyori" {
				t.Errorf("project.group = %q", loaded.Project.Group)
			}
			if len(loaded.Repositories) != 1 || loaded.Repositories[0].Name != "central" {
				t.Errorf("repositories = %+v", loaded.Repositories)
			}
			if loaded.Toolchain.StrictVersions != nil {
				t.Error("unset strict_versions should stay unset")
			}
		})
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(DefaultConfig(), FormatTOML)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), "[toolchain]") {
		t.Errorf("expected toolchain table, got:\n%s", data)
	}

	data, err = Marshal(DefaultConfig(), FormatYAML)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), "minimum_toolchain: 11") {
		t.Errorf("expected minimum_toolchain, got:\n%s", data)
	}

	if _, err := Marshal(DefaultConfig(), Format("ini")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"indra.yaml": FormatYAML,
		"indra.yml":  FormatYAML,
		"indra.TOML": FormatTOML,
		"indra.json": FormatJSON,
		"indra":      FormatYAML,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindConfigFile(dir); !ierrors.IsKind(err, ierrors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if ConfigExists(dir) {
		t.Error("ConfigExists() = true for empty dir")
	}

	writeFile(t, dir, ".indra.yml", "project:\n  version: 1.0.0\n")
	path, err := FindConfigFile(dir)
	if err != nil {
		t.Fatalf("FindConfigFile() error = %v", err)
	}
	if filepath.Base(path) != ".indra.yml" {
		t.Errorf("FindConfigFile() = %q", path)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TOKEN_VALUE", "abc123")
	t.Setenv("FALLBACK", "fallback")

	value := expandEnvVar("prefix-${TOKEN_VALUE}-suffix:$MISSING_INDRA_VAR:${MISSING_INDRA_VAR:-default}:${FALLBACK}")

	if value != "prefix-abc123-suffix:$MISSING_INDRA_VAR:default:fallback" {
		t.Errorf("expandEnvVar() = %q", value)
	}
}

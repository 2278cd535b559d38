package config

import (
	"fmt"
	"slices"
	"strings"

	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/pom"
	"github.com/relicta-tech/indra/internal/properties"
	"github.com/relicta-tech/indra/internal/publish"
)

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string

	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}

	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}

	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (e *ValidationError) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Addf adds a formatted error to the validation error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning to the validation error.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	errors *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: &ValidationError{},
	}
}

// Validate validates the configuration. Warnings never fail validation and
// are available from Warnings afterwards.
func (v *Validator) Validate(cfg *Config) error {
	v.validateProject(cfg.Project, cfg.Modules)
	v.validateToolchain(cfg.Toolchain)
	v.validatePublishing(cfg.Publishing)
	v.validateRepositories(cfg.Repositories)
	v.validateMetadata(cfg.Metadata)
	v.validateOutput(cfg.Output)

	if v.errors.HasErrors() {
		return ierrors.Validation("config.Validate", v.errors.Error())
	}

	return nil
}

// Warnings returns the warnings collected by Validate.
func (v *Validator) Warnings() []string {
	return v.errors.Warnings
}

func (v *Validator) validateProject(cfg ProjectConfig, modules []ModuleConfig) {
	if strings.TrimSpace(cfg.Version) == "" {
		v.errors.Addf("project.version: required")
	} else if strings.ContainsAny(cfg.Version, " \t") {
		v.errors.Addf("project.version: must not contain whitespace, got %q", cfg.Version)
	}

	if cfg.Group == "" {
		v.errors.Warnf("project.group: not set; artifacts cannot be published without a group")
	}

	seen := make(map[string]bool, len(modules))
	for i, m := range modules {
		if m.Name == "" {
			v.errors.Addf("modules[%d].name: required", i)
			continue
		}
		if seen[m.Name] {
			v.errors.Addf("modules[%d].name: duplicate module %q", i, m.Name)
		}
		seen[m.Name] = true
	}
}

func (v *Validator) validateToolchain(cfg ToolchainConfig) {
	if cfg.Target <= 0 {
		v.errors.Addf("toolchain.target: must be positive, got %d", cfg.Target)
	}
	if cfg.MinimumToolchain <= 0 {
		v.errors.Addf("toolchain.minimum_toolchain: must be positive, got %d", cfg.MinimumToolchain)
	}
	for i, version := range cfg.TestWith {
		if version <= 0 {
			v.errors.Addf("toolchain.test_with[%d]: must be positive, got %d", i, version)
		}
	}
}

func (v *Validator) validatePublishing(cfg PublishingConfig) {
	key := properties.StrictMultireleaseVersions
	if raw, ok := properties.NewFolded(cfg.Properties).Lookup(key); ok {
		if _, err := properties.ParseBool(raw); err != nil {
			v.errors.Addf("publishing.properties.%s: invalid boolean %q", key, raw)
		}
	}
}

func (v *Validator) validateRepositories(repos []RepositoryConfig) {
	seen := make(map[string]bool, len(repos))
	for i, repo := range repos {
		if repo.Name == "" {
			v.errors.Addf("repositories[%d].name: required", i)
		} else {
			if seen[repo.Name] {
				v.errors.Addf("repositories[%d].name: duplicate repository %q", i, repo.Name)
			}
			seen[repo.Name] = true
		}

		if repo.URL == "" {
			v.errors.Addf("repositories[%d].url: required", i)
		} else if !publish.ValidURL(repo.URL) {
			v.errors.Addf("repositories[%d].url: invalid URL %q", i, repo.URL)
		}

		if !repo.Releases && !repo.Snapshots {
			v.errors.Warnf("repositories[%d]: %q accepts neither releases nor snapshots and will never be published to", i, repo.Name)
		}
	}
}

func (v *Validator) validateMetadata(cfg MetadataConfig) {
	if cfg.GitHub != nil && cfg.GitLab != nil {
		v.errors.Addf("metadata: github and gitlab are mutually exclusive")
	}
	for name, hosted := range map[string]*HostedConfig{"github": cfg.GitHub, "gitlab": cfg.GitLab} {
		if hosted != nil && (hosted.User == "" || hosted.Repo == "") {
			v.errors.Addf("metadata.%s: user and repo are required", name)
		}
	}

	if cfg.License.ID != "" {
		if _, ok := pom.LicenseByID(cfg.License.ID); !ok {
			v.errors.Addf("metadata.license.id: unknown license %q", cfg.License.ID)
		}
		if cfg.License.Name != "" {
			v.errors.Warnf("metadata.license: name is ignored when id is set")
		}
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, cfg.Format) {
		v.errors.Addf("output.format: must be one of %v, got %q", validFormats, cfg.Format)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.LogLevel) {
		v.errors.Addf("output.log_level: must be one of %v, got %q", validLevels, cfg.LogLevel)
	}

	if cfg.Verbose && cfg.Quiet {
		v.errors.Warnf("output: verbose and quiet are both set; quiet wins")
	}
}

// Validate is a convenience function to validate configuration.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

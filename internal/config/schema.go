// Package config provides configuration management for indra.
package config

import "github.com/relicta-tech/indra/internal/toolchain"

// Config is the root configuration for indra.
type Config struct {
	// Project identifies the project being built.
	Project ProjectConfig `mapstructure:"project" json:"project" yaml:"project" toml:"project"`
	// Modules are subprojects that inherit the project's group, version and description.
	Modules []ModuleConfig `mapstructure:"modules" json:"modules,omitempty" yaml:"modules,omitempty" toml:"modules,omitempty"`
	// Toolchain configures Java toolchain selection.
	Toolchain ToolchainConfig `mapstructure:"toolchain" json:"toolchain" yaml:"toolchain" toml:"toolchain"`
	// Publishing configures publication behaviour.
	Publishing PublishingConfig `mapstructure:"publishing" json:"publishing" yaml:"publishing" toml:"publishing"`
	// Repositories are the declared remote Maven repositories.
	Repositories []RepositoryConfig `mapstructure:"repositories" json:"repositories,omitempty" yaml:"repositories,omitempty" toml:"repositories,omitempty"`
	// Metadata is published in the POM of every artifact.
	Metadata MetadataConfig `mapstructure:"metadata" json:"metadata" yaml:"metadata" toml:"metadata"`
	// Output configures output settings.
	Output OutputConfig `mapstructure:"output" json:"output" yaml:"output" toml:"output"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	// Name is the artifact id. Defaults to the project directory name.
	Name string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	// Group is the Maven group id.
	Group string `mapstructure:"group" json:"group" yaml:"group" toml:"group"`
	// Version is the project version, e.g. "1.2.0" or "1.3.0-SNAPSHOT".
	Version string `mapstructure:"version" json:"version" yaml:"version" toml:"version"`
	// Description is published in the POM.
	Description string `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// ModuleConfig declares a subproject.
type ModuleConfig struct {
	// Name is the module artifact id.
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	// Dir is the module directory, relative to the project directory.
	Dir string `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty"`
}

// ToolchainConfig configures Java toolchain selection.
type ToolchainConfig struct {
	// Target is the Java release compiled for (default: 8).
	Target int `mapstructure:"target" json:"target" yaml:"target" toml:"target"`
	// MinimumToolchain is the lowest JDK used to build (default: 11).
	MinimumToolchain int `mapstructure:"minimum_toolchain" json:"minimum_toolchain" yaml:"minimum_toolchain" toml:"minimum_toolchain"`
	// StrictVersions pins the toolchain to the minimum version. When unset it
	// is read from the strictMultireleaseVersions property, then from CI.
	StrictVersions *bool `mapstructure:"strict_versions" json:"strict_versions,omitempty" yaml:"strict_versions,omitempty" toml:"strict_versions,omitempty"`
	// PreviewFeatures enables Java preview features.
	PreviewFeatures bool `mapstructure:"preview_features" json:"preview_features" yaml:"preview_features" toml:"preview_features"`
	// TestWith lists additional Java versions to test against.
	TestWith []int `mapstructure:"test_with" json:"test_with,omitempty" yaml:"test_with,omitempty" toml:"test_with,omitempty"`
}

// PublishingConfig configures publication behaviour.
type PublishingConfig struct {
	// RequireTagForRelease treats a release version as a snapshot unless HEAD
	// is tagged or there is no git repository.
	RequireTagForRelease bool `mapstructure:"require_tag_for_release" json:"require_tag_for_release" yaml:"require_tag_for_release" toml:"require_tag_for_release"`
	// LocalRepository overrides the local Maven repository (default: ~/.m2/repository).
	LocalRepository string `mapstructure:"local_repository" json:"local_repository,omitempty" yaml:"local_repository,omitempty" toml:"local_repository,omitempty"`
	// SigningKey is passed to gpg as --local-user when set.
	SigningKey string `mapstructure:"signing_key" json:"signing_key,omitempty" yaml:"signing_key,omitempty" toml:"signing_key,omitempty"`
	// Properties are build properties such as repository credentials or
	// forceSign. Keys are matched case-insensitively.
	Properties map[string]string `mapstructure:"properties" json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
}

// RepositoryConfig declares a remote Maven repository.
type RepositoryConfig struct {
	// Name identifies the repository and its ${name}Username/${name}Password credentials.
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	// URL is the repository URL (supports ${VAR} expansion).
	URL string `mapstructure:"url" json:"url" yaml:"url" toml:"url"`
	// Releases marks the repository as accepting releases.
	Releases bool `mapstructure:"releases" json:"releases" yaml:"releases" toml:"releases"`
	// Snapshots marks the repository as accepting snapshots.
	Snapshots bool `mapstructure:"snapshots" json:"snapshots" yaml:"snapshots" toml:"snapshots"`
}

// MetadataConfig describes the POM metadata.
type MetadataConfig struct {
	// GitHub fills scm and issues from a GitHub repository.
	GitHub *HostedConfig `mapstructure:"github" json:"github,omitempty" yaml:"github,omitempty" toml:"github,omitempty"`
	// GitLab fills scm and issues from a GitLab repository.
	GitLab *HostedConfig `mapstructure:"gitlab" json:"gitlab,omitempty" yaml:"gitlab,omitempty" toml:"gitlab,omitempty"`
	// License is an SPDX identifier (mit, apache-2.0, gpl-3.0, lgpl-3.0) or a name/url pair.
	License LicenseConfig `mapstructure:"license" json:"license" yaml:"license" toml:"license"`
	// SCM overrides the source control metadata.
	SCM *SCMConfig `mapstructure:"scm" json:"scm,omitempty" yaml:"scm,omitempty" toml:"scm,omitempty"`
	// CI overrides the continuous integration metadata.
	CI *SystemConfig `mapstructure:"ci" json:"ci,omitempty" yaml:"ci,omitempty" toml:"ci,omitempty"`
	// Issues overrides the issue tracker metadata.
	Issues *SystemConfig `mapstructure:"issues" json:"issues,omitempty" yaml:"issues,omitempty" toml:"issues,omitempty"`
}

// HostedConfig names a repository on a hosting service.
type HostedConfig struct {
	User string `mapstructure:"user" json:"user" yaml:"user" toml:"user"`
	Repo string `mapstructure:"repo" json:"repo" yaml:"repo" toml:"repo"`
	// CI records the service's own CI (GitHub Actions, GitLab CI).
	CI bool `mapstructure:"ci" json:"ci" yaml:"ci" toml:"ci"`
}

// LicenseConfig names a license.
type LicenseConfig struct {
	ID   string `mapstructure:"id" json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Name string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	URL  string `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
}

// SCMConfig describes source control.
type SCMConfig struct {
	Connection          string `mapstructure:"connection" json:"connection,omitempty" yaml:"connection,omitempty" toml:"connection,omitempty"`
	DeveloperConnection string `mapstructure:"developer_connection" json:"developer_connection,omitempty" yaml:"developer_connection,omitempty" toml:"developer_connection,omitempty"`
	URL                 string `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
}

// SystemConfig names an external system and its URL.
type SystemConfig struct {
	System string `mapstructure:"system" json:"system,omitempty" yaml:"system,omitempty" toml:"system,omitempty"`
	URL    string `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
}

// OutputConfig configures output settings.
type OutputConfig struct {
	// Format is the output format (text, json).
	Format string `mapstructure:"format" json:"format" yaml:"format" toml:"format"`
	// Color enables colored output.
	Color bool `mapstructure:"color" json:"color" yaml:"color" toml:"color"`
	// Verbose enables verbose output.
	Verbose bool `mapstructure:"verbose" json:"verbose" yaml:"verbose" toml:"verbose"`
	// Quiet suppresses non-essential output.
	Quiet bool `mapstructure:"quiet" json:"quiet" yaml:"quiet" toml:"quiet"`
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level" toml:"log_level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Version: "0.1.0-SNAPSHOT",
		},
		Toolchain: ToolchainConfig{
			Target:           toolchain.DefaultTarget,
			MinimumToolchain: toolchain.DefaultMinimumToolchain,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			LogLevel: "info",
		},
	}
}

// ConfigFileNames to search for, in order.
var ConfigFileNames = []string{
	"indra",
	".indra",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"json",
	"toml",
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/fileutil"
	"github.com/relicta-tech/indra/internal/properties"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
const EnvPrefix = "INDRA"

var (
	// envVarPattern matches ${VAR} or ${VAR:-default} syntax
	envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	// simpleEnvVarPattern matches $VAR syntax
	simpleEnvVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDirectory replaces the search paths with dir.
func (l *Loader) WithDirectory(dir string) *Loader {
	l.searchPaths = []string{dir}
	return l
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, ierrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, ierrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	expandEnvVars(cfg)

	return cfg, nil
}

// setDefaults sets default values using Viper.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Project defaults
	l.v.SetDefault("project.name", defaults.Project.Name)
	l.v.SetDefault("project.group", defaults.Project.Group)
	l.v.SetDefault("project.version", defaults.Project.Version)
	l.v.SetDefault("project.description", defaults.Project.Description)

	// Toolchain defaults
	l.v.SetDefault("toolchain.target", defaults.Toolchain.Target)
	l.v.SetDefault("toolchain.minimum_toolchain", defaults.Toolchain.MinimumToolchain)
	l.v.SetDefault("toolchain.preview_features", defaults.Toolchain.PreviewFeatures)
	// no default: unset means "ask the build properties"
	_ = l.v.BindEnv("toolchain.strict_versions")

	// Publishing defaults
	l.v.SetDefault("publishing.require_tag_for_release", defaults.Publishing.RequireTagForRelease)
	l.v.SetDefault("publishing.local_repository", defaults.Publishing.LocalRepository)
	l.v.SetDefault("publishing.signing_key", defaults.Publishing.SigningKey)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.color", defaults.Output.Color)
	l.v.SetDefault("output.verbose", defaults.Output.Verbose)
	l.v.SetDefault("output.quiet", defaults.Output.Quiet)
	l.v.SetDefault("output.log_level", defaults.Output.LogLevel)
}

// loadConfigFile loads the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	configFile, err := FindConfigFile(l.searchPaths...)
	if err != nil {
		// No config file found - this is OK, we use defaults
		return nil
	}
	l.v.SetConfigFile(configFile)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", configFile, err)
	}
	return nil
}

// expandEnvVars expands environment variables in repository URLs and
// build properties.
func expandEnvVars(cfg *Config) {
	for i := range cfg.Repositories {
		cfg.Repositories[i].URL = expandEnvVar(cfg.Repositories[i].URL)
	}
	cfg.Publishing.LocalRepository = expandEnvVar(cfg.Publishing.LocalRepository)
	for key, value := range cfg.Publishing.Properties {
		cfg.Publishing.Properties[key] = expandEnvVar(value)
	}
}

// expandEnvVar expands environment variables in a string.
// Supports both ${VAR} and $VAR syntax.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}

		varName := submatch[1]
		defaultValue := ""
		if len(submatch) > 2 {
			defaultValue = submatch[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})

	result = simpleEnvVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		if value := os.Getenv(match[1:]); value != "" {
			return value
		}
		return match
	})

	return result
}

// PropertySource returns the publishing properties of the loaded
// configuration. INDRA_PUBLISHING_PROPERTIES_<KEY> environment variables
// override the file, and ${VAR} references are expanded.
func (l *Loader) PropertySource() properties.Source {
	return properties.Viper{V: l.v, Prefix: "publishing.properties.", Expand: expandEnvVar}
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatForPath picks the format from a file extension, defaulting to YAML.
func FormatForPath(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "toml":
		return FormatTOML
	case "json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Marshal renders cfg in the given format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	const op = "config.Marshal"

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(cfg); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	case FormatTOML:
		data, err = toml.Marshal(cfg)
	case FormatJSON:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	default:
		return nil, ierrors.Config(op, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, ierrors.ConfigWrap(err, op, "failed to encode config")
	}
	return data, nil
}

// WriteConfig writes cfg to path in the format implied by its extension.
func WriteConfig(cfg *Config, path string) error {
	const op = "config.WriteConfig"

	data, err := Marshal(cfg, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := fileutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return ierrors.IOWrap(err, op, "failed to write config file")
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a file.
func WriteDefaultConfig(path string) error {
	return WriteConfig(DefaultConfig(), path)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// LoadFromDirectory loads configuration from a directory.
func LoadFromDirectory(dir string) (*Config, error) {
	return NewLoader().WithDirectory(dir).Load()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}

	for _, searchPath := range searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					return configFile, nil
				}
			}
		}
	}

	return "", ierrors.NotFound("config.FindConfigFile", "no config file found")
}

// ConfigExists returns true if a config file exists in the given directory.
func ConfigExists(dir string) bool {
	_, err := FindConfigFile(dir)
	return err == nil
}

// Package cli provides the command-line interface for indra.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/config"
	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/git"
	"github.com/relicta-tech/indra/internal/properties"
	"github.com/relicta-tech/indra/internal/publishing"
	"github.com/relicta-tech/indra/internal/security"
	"github.com/relicta-tech/indra/internal/version"
)

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	cfgFile    string
	workDir    string
	verbose    bool
	outputJSON bool
	noColor    bool
	logLevel   string
	propFlags  []string
	moduleName string

	// Global config
	cfg *config.Config

	// configPath is the file cfg was loaded from, empty when defaults are used.
	configPath string

	// configProps resolves publishing properties from the config file and
	// INDRA_PUBLISHING_PROPERTIES_* variables.
	configProps properties.Source

	// Logger
	logger *log.Logger

	// gitCache is shared by every project of one invocation.
	gitCache *git.Cache

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// Styles
	styles = struct {
		Title   lipgloss.Style
		Success lipgloss.Style
		Error   lipgloss.Style
		Warning lipgloss.Style
		Info    lipgloss.Style
		Subtle  lipgloss.Style
		Bold    lipgloss.Style
	}{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Bold:    lipgloss.NewStyle().Bold(true),
	}
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(v, commit, date string) {
	versionInfo.Version = version.Resolve(v)
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "indra",
	Short: "Build conventions for JVM projects",
	Long: `indra applies shared build conventions to JVM projects.

It decides which Java toolchain a build uses, whether the project version
is a release or a snapshot, which declared Maven repositories the build may
publish to and whether the published artifacts must be signed.

Key features:
  • Toolchain selection with strict and lenient policies
  • Release/snapshot classification, optionally gated on a git tag
  • Credential-aware repository eligibility
  • POM metadata with GitHub and GitLab shortcuts
  • Signed, require-clean publishing to local and remote repositories

Get started with 'indra init' to set up your project.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stdout = cmd.OutOrStdout()
		if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	logger = newLogger(os.Stderr)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: indra.yaml in the project directory)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringArrayVarP(&propFlags, "property", "P", nil, "build property as key=value (repeatable)")
	rootCmd.PersistentFlags().StringVar(&moduleName, "module", "", "operate on a module instead of the root project")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(toolchainCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(repositoriesCmd)
	rootCmd.AddCommand(gitCmd)
	rootCmd.AddCommand(pomCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(security.NewMaskedWriter(w), log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig() error {
	loader := config.NewLoader().WithDirectory(workDir)
	if cfgFile != "" {
		loader.WithConfigPath(cfgFile)
	}

	loaded, err := loader.Load()
	if err != nil {
		return err
	}

	validator := config.NewValidator()
	if err := validator.Validate(loaded); err != nil {
		return err
	}
	for _, w := range validator.Warnings() {
		logger.Warn("configuration: " + w)
	}

	cfg = loaded
	configPath = loader.GetConfigPath()
	configProps = loader.PropertySource()
	return nil
}

// applyGlobalFlags applies global CLI flags to the configuration.
func applyGlobalFlags() {
	if verbose {
		cfg.Output.Verbose = true
	}
	if logLevel != "" {
		cfg.Output.LogLevel = logLevel
	}
	if outputJSON {
		cfg.Output.Format = "json"
	}
	if noColor || !cfg.Output.Color {
		cfg.Output.Color = false
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// configureLoggerFormat configures the logger format based on settings.
func configureLoggerFormat() {
	if cfg.Output.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
		logger.SetReportTimestamp(true)
	} else {
		logger.SetFormatter(log.TextFormatter)
	}
}

// configureLogLevel sets the logger level based on configuration.
func configureLogLevel() {
	switch cfg.Output.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if cfg.Output.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.Output.Quiet {
		logger.SetLevel(log.WarnLevel)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if err := loadAndValidateConfig(); err != nil {
		return err
	}

	applyGlobalFlags()
	configureLoggerFormat()
	configureLogLevel()

	if gitCache == nil {
		gitCache = git.NewCache(git.WithCacheLogger(logger))
	}
	return nil
}

// Cleanup releases resources held for the invocation. Should be called
// before program exit.
func Cleanup() {
	if gitCache != nil {
		if err := gitCache.Close(); err != nil {
			logger.Debug("failed to close git repositories", "err", err)
		}
		gitCache = nil
	}
}

// buildProperties returns the -P properties.
func buildProperties() properties.Source {
	return properties.Parse(propFlags)
}

// projectDir returns the absolute project directory.
func projectDir() string {
	if abs, err := filepath.Abs(workDir); err == nil {
		return abs
	}
	return workDir
}

// rootProject creates the root project from the configuration.
func rootProject() *publishing.Project {
	return publishing.NewProject(cfg.Project, projectDir())
}

// selectProject returns the root project, or the named module.
func selectProject(name string) (*publishing.Project, error) {
	root := rootProject()
	if name == "" {
		return root, nil
	}
	for _, m := range cfg.Modules {
		if m.Name == name {
			return root.Subproject(m.Name, m.Dir), nil
		}
	}
	return nil, ierrors.NotFound("cli.selectProject", fmt.Sprintf("module %q is not declared", name))
}

// allProjects returns the root project followed by each module.
func allProjects() []*publishing.Project {
	root := rootProject()
	projects := []*publishing.Project{root}
	for _, m := range cfg.Modules {
		projects = append(projects, root.Subproject(m.Name, m.Dir))
	}
	return projects
}

// applyProject applies the publishing conventions to project.
func applyProject(project *publishing.Project) (*publishing.Build, error) {
	return publishing.Apply(publishing.Options{
		Config:           cfg,
		Project:          project,
		Build:            buildProperties(),
		ConfigProperties: configProps,
		Cache:            gitCache,
		Logger:           logger,
	})
}

// newBuild applies the publishing conventions to the project selected by --module.
func newBuild() (*publishing.Build, error) {
	project, err := selectProject(moduleName)
	if err != nil {
		return nil, err
	}
	return applyProject(project)
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "indra %s\n", versionInfo.Version)
		if verbose {
			fmt.Fprintf(stdout, "  commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(stdout, "  built:  %s\n", versionInfo.Date)
		}
	},
}

// Helper functions for output

func writeJSON(v any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printSuccess(msg string) {
	fmt.Fprintln(stdout, styles.Success.Render("✓ "+msg))
}

func printError(msg string) {
	fmt.Fprintln(stdout, styles.Error.Render("✗ "+msg))
}

func printWarning(msg string) {
	fmt.Fprintln(stdout, styles.Warning.Render("⚠ "+msg))
}

func printInfo(msg string) {
	fmt.Fprintln(stdout, styles.Info.Render("ℹ "+msg))
}

func printTitle(msg string) {
	fmt.Fprintln(stdout, styles.Title.Render(msg))
}

func printSubtle(msg string) {
	fmt.Fprintln(stdout, styles.Subtle.Render(msg))
}

// printField prints an aligned "label: value" line.
func printField(label string, value any) {
	fmt.Fprintf(stdout, "  %s %v\n", styles.Bold.Render(fmt.Sprintf("%-18s", label+":")), value)
}

// IsJSONOutput returns true if JSON output is enabled.
func IsJSONOutput() bool {
	return outputJSON || (cfg != nil && cfg.Output.Format == "json")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return styles.Subtle.Render("(none)")
	}
	return s
}

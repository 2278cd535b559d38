package cli

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/config"
	"github.com/relicta-tech/indra/internal/git"
)

var (
	initForce   bool
	initFormat  string
	initGroup   string
	initVersion string
	initLicense string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new indra configuration",
	Long: `Initialize a new indra configuration in the project directory.

This command creates an indra.yaml file with sensible defaults. When the
project has a GitHub or GitLab "origin" remote, the POM metadata is filled
in from it.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "config file format (yaml, toml, json)")
	initCmd.Flags().StringVar(&initGroup, "group", "", "Maven group id")
	initCmd.Flags().StringVar(&initVersion, "project-version", "", "initial project version (default: 0.1.0-SNAPSHOT)")
	initCmd.Flags().StringVar(&initLicense, "license", "", "SPDX license id (mit, apache-2.0, gpl-3.0, lgpl-3.0)")
}

// runInit implements the init command.
func runInit(cmd *cobra.Command, args []string) error {
	dir := projectDir()

	existing, _ := config.FindConfigFile(dir)
	if existing != "" && !initForce {
		printWarning(fmt.Sprintf("Config file already exists: %s", existing))
		printInfo("Use --force to overwrite")
		return nil
	}

	var ext string
	switch initFormat {
	case "yaml", "yml":
		ext = "yaml"
	case "toml", "json":
		ext = initFormat
	default:
		return fmt.Errorf("unsupported format %q (use yaml, toml or json)", initFormat)
	}

	c := config.DefaultConfig()
	c.Project.Name = filepath.Base(dir)
	c.Project.Group = initGroup
	if initVersion != "" {
		c.Project.Version = initVersion
	}
	c.Metadata.License.ID = initLicense

	if host, hosted, ok := detectHostedRepository(dir); ok {
		switch host {
		case "github.com":
			c.Metadata.GitHub = hosted
		case "gitlab.com":
			c.Metadata.GitLab = hosted
		}
		printInfo(fmt.Sprintf("Detected %s repository %s/%s", host, hosted.User, hosted.Repo))
	}

	if err := config.Validate(c); err != nil {
		return err
	}

	path := filepath.Join(dir, "indra."+ext)
	if err := config.WriteConfig(c, path); err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Created %s", path))
	if c.Project.Group == "" {
		printSubtle("Set project.group before publishing.")
	}
	return nil
}

// detectHostedRepository inspects the origin remote of the repository
// containing dir.
func detectHostedRepository(dir string) (string, *config.HostedConfig, bool) {
	p := git.Open(dir, "init", logger)
	defer func() { _ = p.Close() }()
	if !p.Present() {
		return "", nil, false
	}
	remote, err := p.Repository().Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return "", nil, false
	}
	return parseRemoteURL(remote.Config().URLs[0])
}

// parseRemoteURL recognizes https and scp-style GitHub and GitLab remotes.
func parseRemoteURL(raw string) (string, *config.HostedConfig, bool) {
	var host, path string
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host, path = u.Hostname(), u.Path
	} else if at := strings.Index(raw, "@"); at >= 0 {
		// git@github.com:user/repo.git
		rest := raw[at+1:]
		h, p, found := strings.Cut(rest, ":")
		if !found {
			return "", nil, false
		}
		host, path = h, p
	} else {
		return "", nil, false
	}

	if host != "github.com" && host != "gitlab.com" {
		return "", nil, false
	}
	parts := strings.Split(strings.Trim(strings.TrimSuffix(path, ".git"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", nil, false
	}
	return host, &config.HostedConfig{User: parts[0], Repo: parts[1], CI: true}, true
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/config"
	"github.com/relicta-tech/indra/internal/security"
)

var (
	configTOML        bool
	configShowSecrets bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after defaults, the config file and INDRA_*
environment variables have been applied.

Output is YAML unless --toml or --json is given. Secret property values and
credentials embedded in URLs are redacted unless --show-secrets is set.`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configTOML, "toml", false, "print TOML")
	configCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "do not redact secrets")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := *cfg
	if !configShowSecrets {
		out = maskConfig(out)
	}

	format := config.FormatYAML
	switch {
	case IsJSONOutput():
		format = config.FormatJSON
	case configTOML:
		format = config.FormatTOML
	}

	data, err := config.Marshal(&out, format)
	if err != nil {
		return err
	}
	if configPath != "" && format != config.FormatJSON {
		fmt.Fprintf(stdout, "# loaded from %s\n", configPath)
	}
	_, err = stdout.Write(data)
	return err
}

// maskConfig returns a copy of c with secrets redacted.
func maskConfig(c config.Config) config.Config {
	c.Publishing.Properties = security.MaskProperties(c.Publishing.Properties)
	repos := make([]config.RepositoryConfig, len(c.Repositories))
	for i, repo := range c.Repositories {
		repo.URL = security.Mask(repo.URL)
		repos[i] = repo
	}
	if len(repos) > 0 {
		c.Repositories = repos
	}
	return c
}

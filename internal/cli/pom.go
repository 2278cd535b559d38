package cli

import (
	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/pom"
)

var pomCmd = &cobra.Command{
	Use:   "pom",
	Short: "Render the POM of the project",
	Long: `Render the POM published with the project's artifacts.

The metadata comes from the metadata section of the configuration. The
project URL follows the SCM URL.`,
	RunE: runPOM,
}

type pomOutput struct {
	Coordinates pom.Coordinates `json:"coordinates"`
	Metadata    pom.Metadata    `json:"metadata"`
	URL         string          `json:"url,omitempty"`
}

func runPOM(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return writeJSON(pomOutput{
			Coordinates: b.Project().Coordinates(),
			Metadata:    b.Metadata(),
			URL:         b.Metadata().URL(),
		})
	}

	data, err := b.POM()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

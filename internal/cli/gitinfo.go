package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Show the git metadata of the project",
	Long: `Show the HEAD commit, branch, tag at HEAD and describe string.

Missing values are reported as absent; a missing repository is not an error.`,
	RunE: runGit,
}

func runGit(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}
	info := b.GitInfo()

	if IsJSONOutput() {
		return writeJSON(info)
	}

	printTitle("Git " + b.Project().Name())
	if !info.Present {
		printSubtle("No git repository found.")
		return nil
	}
	printField("commit", orNone(info.Commit))
	printField("branch", orNone(info.Branch))
	printField("tag at HEAD", orNone(info.TagAtHead))
	printField("describe", orNone(info.Describe))
	printField("tags", fmt.Sprint(info.Tags))
	return nil
}

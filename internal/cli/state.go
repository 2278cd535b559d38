package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/pom"
	"github.com/relicta-tech/indra/internal/publish"
	"github.com/relicta-tech/indra/internal/publishing"
	"github.com/relicta-tech/indra/internal/release"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show whether the project is a release or a snapshot",
	Long: `Classify the project version and decide whether artifacts must be signed.

A version ending in -SNAPSHOT is a snapshot; anything else is a release.
With publishing.require_tag_for_release set, a release version only counts
as a release when HEAD is tagged or there is no git repository.
Artifacts are signed for releases, and for snapshots when the forceSign
property is present.`,
	RunE: runState,
}

var repositoriesCmd = &cobra.Command{
	Use:     "repositories",
	Aliases: []string{"repos"},
	Short:   "Show which repositories the build may publish to",
	Long: `Evaluate every declared repository.

A repository is eligible when both ${name}Username and ${name}Password are
set and it accepts the project's release state.`,
	RunE: runRepositories,
}

type stateOutput struct {
	Project    pom.Coordinates `json:"project"`
	State      release.State   `json:"state"`
	MustSign   bool            `json:"must_sign"`
	RequireTag bool            `json:"require_tag_for_release"`
	TagAtHead  string          `json:"tag_at_head,omitempty"`
}

func runState(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}

	out := stateOutput{
		Project:    b.Project().Coordinates(),
		State:      b.State(),
		MustSign:   b.ShouldSign(),
		RequireTag: cfg.Publishing.RequireTagForRelease,
	}
	if tag, ok := b.Git().TagAtHead(); ok {
		out.TagAtHead = tag.Name().Short()
	}

	if IsJSONOutput() {
		return writeJSON(out)
	}

	printTitle("State " + out.Project.String())
	printField("state", out.State)
	printField("signing", signingText(out.MustSign))
	printField("require tag", yesNo(out.RequireTag))
	printField("tag at HEAD", orNone(out.TagAtHead))
	return nil
}

func signingText(mustSign bool) string {
	if mustSign {
		return styles.Success.Render("required")
	}
	return styles.Subtle.Render("skipped")
}

type repositoriesOutput struct {
	State     release.State      `json:"state"`
	Decisions []publish.Decision `json:"decisions"`
	Tasks     []string           `json:"tasks"`
}

func runRepositories(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}

	out := repositoriesOutput{State: b.State(), Decisions: b.Decisions()}
	for _, repo := range b.Targets() {
		out.Tasks = append(out.Tasks, publishing.PublishTaskName(repo.Name))
	}

	if IsJSONOutput() {
		return writeJSON(out)
	}

	printTitle(fmt.Sprintf("Repositories (%s)", out.State))
	if len(out.Decisions) == 0 {
		printSubtle("No repositories declared.")
		return nil
	}
	for _, d := range out.Decisions {
		if d.Eligible {
			printSuccess(fmt.Sprintf("%s: %s", d.Repository, d.Reason))
		} else {
			printWarning(fmt.Sprintf("%s: %s", d.Repository, d.Reason))
		}
	}
	return nil
}

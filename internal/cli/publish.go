package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/publishing"
	"github.com/relicta-tech/indra/internal/tasks"
)

var (
	publishDryRun bool
	publishLocal  bool
)

var publishCmd = &cobra.Command{
	Use:   "publish [task...]",
	Short: "Publish the project's artifacts",
	Long: `Publish to every eligible remote repository, or run the named tasks.

Remote publishing first requires a clean git working tree. The POM is signed
with gpg for releases, and for snapshots when the forceSign property is
present. Repository credentials are read from the ${name}Username and
${name}Password properties, given with -P, in ORG_GRADLE_PROJECT_ variables
or under publishing.properties.`,
	RunE: runPublish,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks of the project",
	RunE:  runTasks,
}

func init() {
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "evaluate predicates without running actions")
	publishCmd.Flags().BoolVar(&publishLocal, "local", false, "publish to the local Maven repository only")
}

type publishOutput struct {
	Invocation string         `json:"invocation"`
	Project    string         `json:"project"`
	DryRun     bool           `json:"dry_run"`
	Results    []tasks.Result `json:"results"`
	Error      string         `json:"error,omitempty"`
}

func runPublish(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}

	targets := args
	if publishLocal {
		targets = []string{publishing.TaskPublishLocal}
	}

	results, runErr := b.Publish(cmd.Context(), targets, publishDryRun)

	if IsJSONOutput() {
		out := publishOutput{
			Invocation: b.Invocation(),
			Project:    b.Project().Coordinates().String(),
			DryRun:     publishDryRun,
			Results:    results,
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := writeJSON(out); err != nil {
			return err
		}
		return runErr
	}

	title := "Publish " + b.Project().Coordinates().String()
	if publishDryRun {
		title += " (dry run)"
	}
	printTitle(title)
	for _, r := range results {
		printResult(r)
	}
	if runErr != nil {
		if ierrors.IsKind(runErr, ierrors.KindState) {
			printInfo("Local publishing does not need a clean tree: run 'indra publish --local'")
		}
		return runErr
	}
	if len(b.Targets()) == 0 && !publishLocal && len(args) == 0 {
		printWarning("No eligible remote repositories; run 'indra repositories' for details")
	}
	return nil
}

func printResult(r tasks.Result) {
	line := fmt.Sprintf("%-32s %s", r.Task, r.Status)
	switch r.Status {
	case tasks.StatusExecuted:
		printSuccess(line)
	case tasks.StatusSkipped:
		printSubtle("- " + line)
	case tasks.StatusFailed:
		printError(line)
	default:
		printSubtle("  " + line)
	}
}

type taskOutput struct {
	Name         string     `json:"name"`
	Kind         tasks.Kind `json:"kind"`
	Description  string     `json:"description,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
}

func runTasks(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}

	var out []taskOutput
	for _, name := range b.Graph().Names() {
		t, _ := b.Graph().Named(name)
		out = append(out, taskOutput{
			Name:         t.Name(),
			Kind:         t.Kind(),
			Description:  t.Description(),
			Dependencies: t.Dependencies(),
		})
	}

	if IsJSONOutput() {
		return writeJSON(out)
	}

	printTitle("Tasks " + b.Project().Name())
	for _, t := range out {
		fmt.Fprintf(stdout, "  %s %s\n", styles.Bold.Render(fmt.Sprintf("%-32s", t.Name)), t.Description)
		if len(t.Dependencies) > 0 {
			printSubtle("      depends on " + strings.Join(t.Dependencies, ", "))
		}
	}
	return nil
}

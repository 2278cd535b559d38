package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/relicta-tech/indra/internal/publishing"
	"github.com/relicta-tech/indra/internal/toolchain"
)

var (
	checkRuntime int
	checkWatch   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the conventions for the project and all modules",
	Long: `Resolve toolchain, release state, signing and repository eligibility for
the root project and every declared module.

With --watch the check is repeated whenever the configuration file, the
checked out branch or the tags change.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkRuntime, "runtime", 0, "runtime Java version to resolve against (default: detect)")
	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "re-run the check when the configuration or git state changes")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := checkOnce(ctx); err != nil {
		if !checkWatch {
			return err
		}
		printError(err.Error())
	}
	if !checkWatch {
		return nil
	}
	return watchAndCheck(ctx)
}

// checkOnce evaluates every project concurrently and prints the reports in
// declaration order.
func checkOnce(ctx context.Context) error {
	projects := allProjects()
	probe := lenientProbe(ctx, checkRuntime)

	reports := make([]publishing.Report, len(projects))
	g, gCtx := errgroup.WithContext(ctx)
	for i, project := range projects {
		g.Go(func() error {
			b, err := applyProject(project)
			if err != nil {
				return fmt.Errorf("%s: %w", project.Name(), err)
			}
			report, err := b.Report(gCtx, probe)
			if err != nil {
				return fmt.Errorf("%s: %w", project.Name(), err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if IsJSONOutput() {
		return writeJSON(reports)
	}
	for _, r := range reports {
		printReport(r)
	}
	return nil
}

func printReport(r publishing.Report) {
	printTitle(r.Project.String())
	printField("state", r.State)
	printField("signing", signingText(r.MustSign))
	printField("toolchain", toolchainText(r.Toolchain))
	if r.Git.Present {
		printField("git", orNone(r.Git.Describe))
	} else {
		printField("git", styles.Subtle.Render("(no repository)"))
	}
	for _, d := range r.Decisions {
		verb := "skip"
		if d.Eligible {
			verb = "publish"
		}
		printField(verb+" "+d.Repository, d.Reason)
	}
	printSubtle("  invocation " + r.Invocation)
	fmt.Fprintln(stdout)
}

func toolchainText(s toolchain.Summary) string {
	text := fmt.Sprintf("java %d (target %d, minimum %d", s.ActualVersion, s.Target, s.MinimumVersion)
	if s.StrictVersions {
		text += ", strict"
	}
	return text + ")"
}

// watchPaths returns the files whose changes trigger a new check.
func watchPaths() []string {
	var paths []string
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			paths = append(paths, filepath.Dir(abs))
		}
	}
	p := gitCache.Get(projectDir(), rootProject().Name())
	if repo := p.Repository(); repo != nil {
		if wt, err := repo.Worktree(); err == nil {
			gitDir := filepath.Join(wt.Filesystem.Root(), ".git")
			for _, rel := range []string{"", filepath.Join("refs", "tags"), filepath.Join("refs", "heads")} {
				dir := filepath.Join(gitDir, rel)
				if info, err := os.Stat(dir); err == nil && info.IsDir() {
					paths = append(paths, dir)
				}
			}
		}
	}
	return paths
}

func watchAndCheck(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	paths := watchPaths()
	if len(paths) == 0 {
		return fmt.Errorf("nothing to watch: no config file and no git repository")
	}
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		logger.Debug("watching", "path", path)
	}
	printSubtle("Watching for changes, press Ctrl+C to stop")

	var (
		lastRun time.Time
		pending <-chan time.Time
	)
	const debounceInterval = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !relevantChange(event.Name) {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if pending == nil {
				pending = time.After(debounceInterval)
			}

		case <-pending:
			pending = nil
			if time.Since(lastRun) < debounceInterval {
				continue
			}
			lastRun = time.Now()
			fmt.Fprintf(stdout, "\n[%s] Change detected\n", lastRun.Format("15:04:05"))
			if err := loadAndValidateConfig(); err != nil {
				printError(fmt.Sprintf("Configuration error: %v", err))
				continue
			}
			applyGlobalFlags()
			if err := checkOnce(ctx); err != nil {
				printError(err.Error())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)

		case <-ctx.Done():
			printSubtle("Stopping watch mode...")
			return nil
		}
	}
}

// relevantChange filters out lock files and editor droppings.
func relevantChange(path string) bool {
	base := filepath.Base(path)
	if filepath.Ext(base) == ".lock" || base == "index" || base == "ORIG_HEAD" || base == "FETCH_HEAD" {
		return false
	}
	if configPath != "" && filepath.Dir(path) == filepath.Dir(mustAbs(configPath)) {
		return base == filepath.Base(configPath)
	}
	return true
}

func mustAbs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

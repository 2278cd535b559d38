package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/indra/internal/toolchain"
)

var toolchainRuntime int

var toolchainCmd = &cobra.Command{
	Use:   "toolchain",
	Short: "Show the Java toolchain the build uses",
	Long: `Resolve the Java toolchain for the project.

The runtime Java version is read from $JAVA_HOME/release or 'java -version'
unless --runtime is given. In strict mode, or when the runtime is older than
max(minimum toolchain, target), the minimum version is used; otherwise the
runtime is used as is.`,
	RunE: runToolchain,
}

func init() {
	toolchainCmd.Flags().IntVar(&toolchainRuntime, "runtime", 0, "runtime Java version to resolve against (default: detect)")
}

// runtimeProbe returns the probe selected by --runtime.
func runtimeProbe(override int) toolchain.RuntimeProbe {
	if override > 0 {
		return toolchain.FixedRuntime(override)
	}
	return toolchain.DetectRuntime
}

// lenientProbe detects the runtime once and falls back to zero, which
// resolves to the minimum version, when no Java installation is found.
func lenientProbe(ctx context.Context, override int) toolchain.RuntimeProbe {
	runtime, err := runtimeProbe(override)(ctx)
	if err != nil {
		logger.Warn("could not detect the Java runtime version", "err", err)
		runtime = 0
	}
	return toolchain.FixedRuntime(runtime)
}

func runToolchain(cmd *cobra.Command, args []string) error {
	b, err := newBuild()
	if err != nil {
		return err
	}
	runtime, err := runtimeProbe(toolchainRuntime)(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to detect the Java runtime (use --runtime): %w", err)
	}
	summary := b.Versions().Summarize(runtime)

	if IsJSONOutput() {
		return writeJSON(summary)
	}

	printTitle("Toolchain " + b.Project().Name())
	printField("target", summary.Target)
	printField("minimum toolchain", summary.MinimumToolchain)
	printField("minimum version", summary.MinimumVersion)
	printField("strict versions", yesNo(summary.StrictVersions))
	printField("preview features", yesNo(summary.PreviewFeatures))
	printField("test with", joinInts(summary.TestWith))
	printField("runtime", summary.Runtime)
	printField("actual version", styles.Success.Render(fmt.Sprint(summary.ActualVersion)))
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

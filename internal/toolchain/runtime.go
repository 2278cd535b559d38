package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// RuntimeProbe reports the feature version of the Java runtime currently
// available to the build.
type RuntimeProbe func(ctx context.Context) (int, error)

// FixedRuntime returns a probe that always reports version.
func FixedRuntime(version int) RuntimeProbe {
	return func(context.Context) (int, error) { return version, nil }
}

// probeTimeout bounds a `java -version` invocation.
const probeTimeout = 10 * time.Second

var (
	releaseVersionPattern = regexp.MustCompile(`^JAVA_VERSION="([^"]+)"`)
	// matches both `openjdk version "17.0.2"` and `java version "1.8.0_292"`
	versionOutputPattern = regexp.MustCompile(`version "([^"]+)"`)
)

// DetectRuntime finds the current Java runtime version. It reads the release
// file of $JAVA_HOME first and falls back to `java -version`.
func DetectRuntime(ctx context.Context) (int, error) {
	const op = "toolchain.DetectRuntime"

	if home := os.Getenv("JAVA_HOME"); home != "" {
		if version, err := readReleaseFile(filepath.Join(home, "release")); err == nil {
			return version, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// java prints its version banner on stderr
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "java", "-version")
	cmd.Stderr = &out
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, ierrors.Wrap(err, ierrors.KindNotFound, op, "no Java runtime found")
	}
	return ParseVersionOutput(out.String())
}

func readReleaseFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := releaseVersionPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text())); m != nil {
			return ParseJavaVersion(m[1])
		}
	}
	return 0, ierrors.NotFound("toolchain.readReleaseFile", "JAVA_VERSION not present in "+path)
}

// ParseVersionOutput extracts the feature version from `java -version` output.
func ParseVersionOutput(output string) (int, error) {
	m := versionOutputPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, ierrors.Validation("toolchain.ParseVersionOutput", "unrecognised java -version output")
	}
	return ParseJavaVersion(m[1])
}

// ParseJavaVersion returns the feature version of a Java version string.
// Legacy strings such as "1.8.0_292" map to their minor component (8);
// modern strings such as "17.0.2", "21" or "22-ea" map to their major.
func ParseJavaVersion(s string) (int, error) {
	const op = "toolchain.ParseJavaVersion"

	s = strings.TrimSpace(s)
	// update numbers are not semver build metadata
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[:i]
	}
	s = trimExtraComponents(s)

	v, err := semver.NewVersion(s)
	if err != nil {
		return 0, ierrors.Wrapf(err, ierrors.KindValidation, op, "invalid Java version %q", s)
	}
	if v.Major() == 1 {
		return int(v.Minor()), nil
	}
	return int(v.Major()), nil
}

// trimExtraComponents drops numeric components after major.minor.patch, such
// as the trailing ".1" of "11.0.20.1". Pre-release and build suffixes are
// kept.
func trimExtraComponents(s string) string {
	core, suffix := s, ""
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core, suffix = s[:i], s[i:]
	}
	parts := strings.Split(core, ".")
	if len(parts) <= 3 {
		return s
	}
	return strings.Join(parts[:3], ".") + suffix
}

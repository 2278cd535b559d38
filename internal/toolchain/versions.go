// Package toolchain resolves which Java language version a project targets,
// tests against and builds with.
package toolchain

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Default values for a freshly constructed Versions.
const (
	DefaultTarget           = 8
	DefaultMinimumToolchain = 11
)

// Versions holds the toolchain configuration of a single project.
//
// Versions is mutable while the build is being configured. The set of test
// versions always contains the current target: it is stored as the explicit
// additions only and the target is merged in on every read, so changing the
// target later never leaves a stale entry behind.
type Versions struct {
	mu sync.RWMutex

	target           int
	minimumToolchain int
	strictVersions   bool
	previewFeatures  bool
	testWith         map[int]struct{}
}

// Option configures Versions at construction.
type Option func(*Versions)

// WithTarget sets the Java language version to compile for.
func WithTarget(target int) Option {
	return func(v *Versions) { v.target = target }
}

// WithMinimumToolchain sets the lowest toolchain acceptable to run the build.
func WithMinimumToolchain(minimum int) Option {
	return func(v *Versions) { v.minimumToolchain = minimum }
}

// WithStrictVersions forces the computed minimum version to be used.
func WithStrictVersions(strict bool) Option {
	return func(v *Versions) { v.strictVersions = strict }
}

// WithPreviewFeatures enables Java preview features.
func WithPreviewFeatures(enabled bool) Option {
	return func(v *Versions) { v.previewFeatures = enabled }
}

// WithTestVersions adds versions to test against in addition to the target.
func WithTestVersions(versions ...int) Option {
	return func(v *Versions) {
		for _, version := range versions {
			v.testWith[version] = struct{}{}
		}
	}
}

// New creates Versions with defaults applied, then the given options.
func New(opts ...Option) *Versions {
	v := &Versions{
		target:           DefaultTarget,
		minimumToolchain: DefaultMinimumToolchain,
		testWith:         make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Target returns the Java language version to compile for.
func (v *Versions) Target() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.target
}

// SetTarget sets the Java language version to compile for.
func (v *Versions) SetTarget(target int) {
	v.mu.Lock()
	v.target = target
	v.mu.Unlock()
}

// MinimumToolchain returns the lowest toolchain acceptable to run the build.
func (v *Versions) MinimumToolchain() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.minimumToolchain
}

// SetMinimumToolchain sets the lowest toolchain acceptable to run the build.
func (v *Versions) SetMinimumToolchain(minimum int) {
	v.mu.Lock()
	v.minimumToolchain = minimum
	v.mu.Unlock()
}

// StrictVersions reports whether strict mode is enabled.
func (v *Versions) StrictVersions() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.strictVersions
}

// SetStrictVersions enables or disables strict mode.
func (v *Versions) SetStrictVersions(strict bool) {
	v.mu.Lock()
	v.strictVersions = strict
	v.mu.Unlock()
}

// PreviewFeaturesEnabled reports whether preview features are enabled.
func (v *Versions) PreviewFeaturesEnabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.previewFeatures
}

// SetPreviewFeaturesEnabled enables or disables preview features.
func (v *Versions) SetPreviewFeaturesEnabled(enabled bool) {
	v.mu.Lock()
	v.previewFeatures = enabled
	v.mu.Unlock()
}

// AddTestVersions adds versions to test against.
func (v *Versions) AddTestVersions(versions ...int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, version := range versions {
		v.testWith[version] = struct{}{}
	}
}

// TestWith returns every version to test against, ascending. The current
// target is always included.
func (v *Versions) TestWith() []int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]int, 0, len(v.testWith)+1)
	out = append(out, v.target)
	for version := range v.testWith {
		if version != v.target {
			out = append(out, version)
		}
	}
	sort.Ints(out)
	return out
}

// MinimumVersion returns max(MinimumToolchain, Target).
func (v *Versions) MinimumVersion() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return max(v.minimumToolchain, v.target)
}

// ActualVersion returns the toolchain version to build with given the
// version of the runtime that is currently available.
func (v *Versions) ActualVersion(runtime int) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ActualVersion(v.target, v.minimumToolchain, v.strictVersions, runtime)
}

// ActualVersionNow samples the runtime version through probe and resolves the
// toolchain version. The runtime is sampled on every call.
func (v *Versions) ActualVersionNow(ctx context.Context, probe RuntimeProbe) (int, error) {
	runtime, err := probe(ctx)
	if err != nil {
		return 0, err
	}
	return v.ActualVersion(runtime), nil
}

// Summary is a snapshot of the resolved toolchain settings.
type Summary struct {
	Target           int   `json:"target" yaml:"target"`
	MinimumToolchain int   `json:"minimum_toolchain" yaml:"minimum_toolchain"`
	MinimumVersion   int   `json:"minimum_version" yaml:"minimum_version"`
	StrictVersions   bool  `json:"strict_versions" yaml:"strict_versions"`
	PreviewFeatures  bool  `json:"preview_features" yaml:"preview_features"`
	TestWith         []int `json:"test_with" yaml:"test_with"`
	Runtime          int   `json:"runtime" yaml:"runtime"`
	ActualVersion    int   `json:"actual_version" yaml:"actual_version"`
}

// Summarize resolves the settings against the given runtime version.
func (v *Versions) Summarize(runtime int) Summary {
	return Summary{
		Target:           v.Target(),
		MinimumToolchain: v.MinimumToolchain(),
		MinimumVersion:   v.MinimumVersion(),
		StrictVersions:   v.StrictVersions(),
		PreviewFeatures:  v.PreviewFeaturesEnabled(),
		TestWith:         v.TestWith(),
		Runtime:          runtime,
		ActualVersion:    v.ActualVersion(runtime),
	}
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("target=%d minimum=%d strict=%t runtime=%d actual=%d",
		s.Target, s.MinimumVersion, s.StrictVersions, s.Runtime, s.ActualVersion)
}

// ActualVersion applies the toolchain policy: in strict mode, or when the
// runtime is older than max(minimumToolchain, target), that maximum is used;
// otherwise the newer runtime is used as is.
func ActualVersion(target, minimumToolchain int, strict bool, runtime int) int {
	minimum := max(minimumToolchain, target)
	if strict || runtime < minimum {
		return minimum
	}
	return runtime
}

package publishing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/indra/internal/config"
	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/properties"
	"github.com/relicta-tech/indra/internal/publish"
	"github.com/relicta-tech/indra/internal/release"
	"github.com/relicta-tech/indra/internal/tasks"
	"github.com/relicta-tech/indra/internal/toolchain"
)

type recordingDeployer struct {
	mu        sync.Mutex
	artifacts []Artifact
}

func (d *recordingDeployer) Deploy(_ context.Context, a Artifact) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.artifacts = append(d.artifacts, a)
	return nil
}

func (d *recordingDeployer) deployed() []Artifact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Artifact{}, d.artifacts...)
}

type fixture struct {
	remote map[string]*recordingDeployer
	local  *recordingDeployer
	signed int
}

func newFixture() *fixture {
	return &fixture{remote: make(map[string]*recordingDeployer), local: &recordingDeployer{}}
}

func (f *fixture) options(t *testing.T, dir string, cfg *config.Config, build properties.Map) Options {
	t.Helper()
	return Options{
		Dir:    dir,
		Config: cfg,
		Build:  build,
		Env:    properties.Map{},
		Remote: func(repo publish.RemoteRepository) Deployer {
			d := &recordingDeployer{}
			f.remote[repo.Name] = d
			return d
		},
		Local: f.local,
		Signer: SignerFunc(func(_ context.Context, data []byte) ([]byte, error) {
			f.signed++
			return []byte("-----BEGIN PGP SIGNATURE-----"), nil
		}),
	}
}

func testConfig(version string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Project = config.ProjectConfig{Name: "adventure-api", Group: "net.kyori", Version: version}
	cfg.Repositories = []config.RepositoryConfig{
		{Name: "central", URL: "https://central.example.com/releases", Releases: true},
		{Name: "snapshots", URL: "https://snapshots.example.com", Snapshots: true},
	}
	return cfg
}

func allCredentials() properties.Map {
	return properties.Map{
		"centralUsername":   "deployer",
		"centralPassword":   "secret",
		"snapshotsUsername": "deployer",
		"snapshotsPassword": "secret",
	}
}

func targetNames(b *Build) []string {
	var names []string
	for _, repo := range b.Targets() {
		names = append(names, repo.Name)
	}
	return names
}

// initRepo creates a git repository in dir with one committed file.
func initRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.gradle"), []byte("plugins {}\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("build.gradle")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return repo
}

func TestApply_SnapshotTargets(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0-SNAPSHOT"), allCredentials()))
	require.NoError(t, err)

	assert.Equal(t, release.Snapshot, b.State())
	assert.Equal(t, []string{"snapshots"}, targetNames(b))
	assert.False(t, b.ShouldSign())

	decisions := b.Decisions()
	require.Len(t, decisions, 2)
	assert.Equal(t, "central", decisions[0].Repository)
	assert.False(t, decisions[0].Eligible)
	assert.Equal(t, "release/snapshot constraint not met", decisions[0].Reason)
	assert.True(t, decisions[1].Eligible)

	_, ok := b.Graph().Named("publishToSnapshotsRepository")
	assert.True(t, ok)
	_, ok = b.Graph().Named("publishToCentralRepository")
	assert.False(t, ok)

	publishAll, ok := b.Graph().Named(TaskPublish)
	require.True(t, ok)
	assert.Equal(t, []string{"publishToSnapshotsRepository"}, publishAll.Dependencies())
}

func TestApply_ReleaseTargets(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0"), allCredentials()))
	require.NoError(t, err)

	assert.Equal(t, release.Release, b.State())
	assert.Equal(t, []string{"central"}, targetNames(b))
	assert.True(t, b.ShouldSign())
}

func TestApply_MissingCredentials(t *testing.T) {
	f := newFixture()
	build := properties.Map{"centralUsername": "deployer"}
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0"), build))
	require.NoError(t, err)

	assert.Empty(t, b.Targets())
	for _, d := range b.Decisions() {
		assert.Equal(t, "username or password was not set", d.Reason)
	}
}

func TestApply_ConfigPropertiesProvideCredentials(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	// viper folds map keys to lower case
	cfg.Publishing.Properties = map[string]string{"centralusername": "deployer", "centralpassword": "secret"}

	b, err := Apply(f.options(t, t.TempDir(), cfg, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"central"}, targetNames(b))
}

func TestApply_DuplicateRepository(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Repositories = append(cfg.Repositories, config.RepositoryConfig{Name: "central", URL: "https://other.example.com", Releases: true})

	_, err := Apply(f.options(t, t.TempDir(), cfg, allCredentials()))
	require.Error(t, err)
	assert.True(t, ierrors.IsKind(err, ierrors.KindConfig))
}

func TestApply_MalformedStrictProperty(t *testing.T) {
	f := newFixture()
	_, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0"), properties.Map{"strictMultireleaseVersions": "maybe"}))
	require.Error(t, err)
	assert.True(t, ierrors.IsKind(err, ierrors.KindConfig))
}

func TestApply_StrictVersions(t *testing.T) {
	tests := []struct {
		name   string
		config *bool
		build  properties.Map
		env    properties.Map
		want   bool
	}{
		{name: "default", want: false},
		{name: "property", build: properties.Map{"strictMultireleaseVersions": "true"}, want: true},
		{name: "ci", env: properties.Map{"CI": "true"}, want: true},
		{name: "config wins over property", config: new(bool), build: properties.Map{"strictMultireleaseVersions": "true"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			cfg := testConfig("1.0.0")
			cfg.Toolchain.StrictVersions = tt.config
			opts := f.options(t, t.TempDir(), cfg, tt.build)
			if tt.env != nil {
				opts.Env = tt.env
			}

			b, err := Apply(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Versions().StrictVersions())
		})
	}
}

func TestApply_ToolchainFromConfig(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Toolchain.Target = 17
	cfg.Toolchain.TestWith = []int{21}

	b, err := Apply(f.options(t, t.TempDir(), cfg, nil))
	require.NoError(t, err)

	assert.Equal(t, []int{17, 21}, b.Versions().TestWith())
	assert.Equal(t, 17, b.Versions().ActualVersion(11))
	assert.Equal(t, 21, b.Versions().ActualVersion(21))
}

func TestBuild_LateVersionChangeAffectsSigning(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0-SNAPSHOT"), allCredentials()))
	require.NoError(t, err)
	require.False(t, b.ShouldSign())

	b.Project().SetVersion("1.0.0")

	assert.Equal(t, release.Release, b.State())
	assert.True(t, b.ShouldSign())
	// eligibility was decided when the repositories were declared
	assert.Equal(t, []string{"snapshots"}, targetNames(b))
}

func TestBuild_ForceSign(t *testing.T) {
	f := newFixture()
	build := allCredentials()
	build["forceSign"] = ""

	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0-SNAPSHOT"), build))
	require.NoError(t, err)
	assert.True(t, b.ShouldSign())
}

func TestBuild_RepositoryAddedLater(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Repositories = nil
	build := allCredentials()
	build["stagingUsername"] = "deployer"
	build["stagingPassword"] = "secret"

	b, err := Apply(f.options(t, t.TempDir(), cfg, build))
	require.NoError(t, err)
	require.Empty(t, b.Targets())

	require.NoError(t, b.AddRepository(publish.RemoteRepository{Name: "staging", URL: "https://staging.example.com", Releases: true}))

	assert.Equal(t, []string{"staging"}, targetNames(b))
	task, ok := b.Graph().Named("publishToStagingRepository")
	require.True(t, ok)
	assert.Contains(t, task.Dependencies(), TaskRequireClean)
	assert.Contains(t, task.Dependencies(), TaskSign)
}

func TestBuild_RequireTagForRelease(t *testing.T) {
	dir := t.TempDir()
	repo := initRepo(t, dir)

	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Publishing.RequireTagForRelease = true

	b, err := Apply(f.options(t, dir, cfg, allCredentials()))
	require.NoError(t, err)
	assert.Equal(t, release.Snapshot, b.State())
	assert.Equal(t, []string{"snapshots"}, targetNames(b))

	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.0.0", head.Hash(), nil)
	require.NoError(t, err)

	assert.Equal(t, release.Release, b.State())
	assert.True(t, b.ShouldSign())
}

func TestPublish_Release(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0"), allCredentials()))
	require.NoError(t, err)

	results, err := b.Publish(context.Background(), nil, false)
	require.NoError(t, err)

	statuses := make(map[string]tasks.Status)
	for _, r := range results {
		statuses[r.Task] = r.Status
	}
	assert.Equal(t, map[string]tasks.Status{
		TaskRequireClean:             tasks.StatusExecuted,
		TaskSign:                     tasks.StatusExecuted,
		"publishToCentralRepository": tasks.StatusExecuted,
		TaskPublish:                  tasks.StatusExecuted,
	}, statuses)

	assert.Equal(t, 1, f.signed)
	deployed := f.remote["central"].deployed()
	require.Len(t, deployed, 1)
	assert.Equal(t, "net.kyori:adventure-api:1.0.0", deployed[0].Coordinates.String())
	assert.Contains(t, string(deployed[0].POM), "<artifactId>adventure-api</artifactId>")
	assert.NotEmpty(t, deployed[0].Signature)
	assert.Empty(t, f.local.deployed())
}

func TestPublish_SnapshotSkipsSigning(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0-SNAPSHOT"), allCredentials()))
	require.NoError(t, err)

	results, err := b.Publish(context.Background(), nil, false)
	require.NoError(t, err)

	for _, r := range results {
		if r.Task == TaskSign {
			assert.Equal(t, tasks.StatusSkipped, r.Status)
		}
	}
	assert.Zero(t, f.signed)
	deployed := f.remote["snapshots"].deployed()
	require.Len(t, deployed, 1)
	assert.Empty(t, deployed[0].Signature)
}

func TestPublish_DirtyTreeBlocksRemoteOnly(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("wip"), 0o644))

	f := newFixture()
	b, err := Apply(f.options(t, dir, testConfig("1.0.0"), allCredentials()))
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), nil, false)
	require.Error(t, err)
	assert.True(t, ierrors.IsKind(err, ierrors.KindState))
	assert.Empty(t, f.remote["central"].deployed())

	_, err = b.Publish(context.Background(), []string{TaskPublishLocal}, false)
	require.NoError(t, err)
	assert.Len(t, f.local.deployed(), 1)
}

func TestPublish_CleanTree(t *testing.T) {
	dir := t.TempDir()
	initRepo(t, dir)

	f := newFixture()
	b, err := Apply(f.options(t, dir, testConfig("1.0.0"), allCredentials()))
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Len(t, f.remote["central"].deployed(), 1)
}

func TestPublish_DryRun(t *testing.T) {
	f := newFixture()
	b, err := Apply(f.options(t, t.TempDir(), testConfig("1.0.0"), allCredentials()))
	require.NoError(t, err)

	results, err := b.Publish(context.Background(), nil, true)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, r.DryRun)
	}
	assert.Zero(t, f.signed)
	assert.Empty(t, f.remote["central"].deployed())
}

func TestPublish_InvalidCoordinates(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Project.Group = ""

	b, err := Apply(f.options(t, t.TempDir(), cfg, allCredentials()))
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), nil, false)
	require.Error(t, err)
	assert.True(t, ierrors.IsKind(err, ierrors.KindValidation))
}

func TestPublish_UnsignedInvalidPOMIsNotDeployed(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0-SNAPSHOT")
	cfg.Project.Group = ""

	b, err := Apply(f.options(t, t.TempDir(), cfg, allCredentials()))
	require.NoError(t, err)

	_, err = b.Publish(context.Background(), nil, false)
	require.Error(t, err)
	assert.True(t, ierrors.IsKind(err, ierrors.KindValidation))
	assert.Zero(t, f.signed)
	assert.Empty(t, f.remote["snapshots"].deployed())

	_, err = b.Publish(context.Background(), []string{TaskPublishLocal}, false)
	require.Error(t, err)
	assert.Empty(t, f.local.deployed())

	_, err = b.Artifact()
	assert.True(t, ierrors.IsKind(err, ierrors.KindValidation))
}

func TestBuild_Report(t *testing.T) {
	f := newFixture()
	cfg := testConfig("1.0.0")
	cfg.Metadata.GitHub = &config.HostedConfig{User: "KyoriPowered", Repo: "adventure"}

	b, err := Apply(f.options(t, t.TempDir(), cfg, allCredentials()))
	require.NoError(t, err)

	report, err := b.Report(context.Background(), toolchain.FixedRuntime(17))
	require.NoError(t, err)

	assert.Regexp(t, `^run_[0-9a-f-]{12}$`, report.Invocation)
	assert.Equal(t, release.Release, report.State)
	assert.True(t, report.MustSign)
	assert.Equal(t, 17, report.Toolchain.ActualVersion)
	assert.Len(t, report.Decisions, 2)
	assert.False(t, report.Git.Present)
	assert.Equal(t, []string{"publishToCentralRepository"}, report.PublishWith)
	assert.Equal(t, "https://github.com/KyoriPowered/adventure", b.Metadata().URL())
}

func TestBuild_GitInfo(t *testing.T) {
	dir := t.TempDir()
	repo := initRepo(t, dir)
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.0.0", head.Hash(), nil)
	require.NoError(t, err)

	f := newFixture()
	b, err := Apply(f.options(t, dir, testConfig("1.0.0"), nil))
	require.NoError(t, err)

	info := b.GitInfo()
	assert.True(t, info.Present)
	assert.Equal(t, head.Hash().String(), info.Commit)
	assert.Equal(t, "master", info.Branch)
	assert.Equal(t, "v1.0.0", info.TagAtHead)
	assert.Equal(t, "v1.0.0-0-g"+head.Hash().String()[:7], info.Describe)
	assert.Equal(t, 1, info.Tags)
}

func TestMetadataFromConfig(t *testing.T) {
	cfg := config.MetadataConfig{
		GitHub:  &config.HostedConfig{User: "KyoriPowered", Repo: "indra", CI: true},
		License: config.LicenseConfig{ID: "MIT"},
		Issues:  &config.SystemConfig{System: "Jira", URL: "https://jira.example.com"},
	}

	m := MetadataFromConfig(cfg, "indra", "Build conventions")

	assert.Equal(t, "indra", m.Name)
	assert.Equal(t, "Build conventions", m.Description)
	require.NotNil(t, m.License)
	assert.Equal(t, "MIT License", m.License.Name)
	require.NotNil(t, m.CI)
	assert.Equal(t, "GitHub Actions", m.CI.System)
	assert.Equal(t, "Jira", m.Issues.System)
	assert.Equal(t, "https://github.com/KyoriPowered/indra", m.URL())

	custom := MetadataFromConfig(config.MetadataConfig{
		License: config.LicenseConfig{Name: "Custom", URL: "https://example.com/license"},
		SCM:     &config.SCMConfig{URL: "https://example.com/src"},
	}, "x", "")
	assert.Equal(t, "Custom", custom.License.Name)
	assert.Equal(t, "https://example.com/src", custom.URL())
	assert.Nil(t, custom.CI)
}

func TestPublishTaskName(t *testing.T) {
	assert.Equal(t, "publishToCentralRepository", PublishTaskName("central"))
	assert.Equal(t, "publishToSonatypeSnapshotsRepository", PublishTaskName("sonatypeSnapshots"))
	assert.Equal(t, "publishToRepository", PublishTaskName(""))
}

func TestSubproject(t *testing.T) {
	root := NewProject(config.ProjectConfig{Group: "net.kyori", Version: "4.0.0", Description: "adventure"}, t.TempDir())
	api := root.Subproject("adventure-api", "api")

	assert.False(t, api.IsRoot())
	assert.Same(t, root, api.Root())
	assert.Equal(t, filepath.Join(root.Dir(), "api"), api.Dir())
	assert.Equal(t, "net.kyori:adventure-api:4.0.0", api.Coordinates().String())
	assert.Equal(t, "adventure", api.Description())

	// copied at creation, not linked
	root.SetVersion("4.1.0")
	assert.Equal(t, "4.0.0", api.Version())
}

func TestApply_Subproject(t *testing.T) {
	dir := t.TempDir()
	f := newFixture()
	cfg := testConfig("2.0.0")
	root := NewProject(cfg.Project, dir)
	opts := f.options(t, dir, cfg, allCredentials())
	opts.Project = root.Subproject("adventure-text", "text")

	b, err := Apply(opts)
	require.NoError(t, err)
	assert.Equal(t, "net.kyori:adventure-text:2.0.0", b.Project().Coordinates().String())
	assert.Equal(t, "adventure-text", b.Metadata().Name)
}

// Package publishing applies the publishing conventions to a project: it
// resolves the toolchain and release state, declares the configured remote
// repositories, keeps the eligible ones as publish targets and wires the
// sign, require-clean and publish tasks into a task graph.
package publishing

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/relicta-tech/indra/internal/config"
	ierrors "github.com/relicta-tech/indra/internal/errors"
	"github.com/relicta-tech/indra/internal/git"
	"github.com/relicta-tech/indra/internal/pom"
	"github.com/relicta-tech/indra/internal/properties"
	"github.com/relicta-tech/indra/internal/publish"
	"github.com/relicta-tech/indra/internal/release"
	"github.com/relicta-tech/indra/internal/tasks"
	"github.com/relicta-tech/indra/internal/toolchain"
)

// Task names registered by Apply.
const (
	TaskRequireClean = "requireClean"
	TaskSign         = "signMavenPublication"
	TaskPublishLocal = "publishToMavenLocal"
	TaskPublish      = "publish"
)

// Options configure Apply.
type Options struct {
	// Dir is the project directory. Ignored when Project is set.
	Dir string
	// Config is the loaded configuration. Nil uses the defaults.
	Config *config.Config
	// Project overrides the project built from Config.Project and Dir.
	Project *Project
	// Build holds build properties, such as those given with -P. Config
	// properties and ORG_GRADLE_PROJECT_ variables are consulted after it.
	Build properties.Source
	// ConfigProperties are the configured publishing properties. Nil reads
	// Config.Publishing.Properties.
	ConfigProperties properties.Source
	// Env is consulted for CI. Nil uses the process environment.
	Env properties.Source
	// Cache shares git providers between projects. Nil creates a private cache.
	Cache *git.Cache
	// Logger receives decisions and task progress. Nil discards output.
	Logger *log.Logger
	// Remote creates deployers for eligible repositories. Nil uploads over HTTP.
	Remote DeployerFactory
	// Local receives publishToMavenLocal. Nil uses the configured local repository.
	Local Deployer
	// Signer signs the POM. Nil runs gpg with the configured signing key.
	Signer Signer
}

// Build is a project with the publishing conventions applied.
type Build struct {
	invocation string
	project    *Project
	versions   *toolchain.Versions
	git        *git.Provider
	requireTag bool
	props      properties.Source
	metadata   pom.Metadata

	registry *publish.Registry
	filter   *publish.Filter
	graph    *tasks.Graph
	gate     *release.SigningGate
	remote   DeployerFactory
	local    Deployer
	signer   Signer
	logger   *log.Logger

	mu        sync.Mutex
	signature []byte
}

// Apply resolves the project's settings and registers its tasks. Invalid
// property values and repository declarations are returned as errors.
func Apply(opts Options) (*Build, error) {
	const op = "publishing.Apply"

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	project := opts.Project
	if project == nil {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		project = NewProject(cfg.Project, dir)
	}

	invocation := fmt.Sprintf("run_%s", uuid.New().String()[:12])
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("invocation", invocation, "project", project.Name())

	configProps := opts.ConfigProperties
	if configProps == nil {
		configProps = properties.NewFolded(cfg.Publishing.Properties)
	}
	props := properties.Chain{
		properties.PrefixedEnv{Prefix: properties.GradleEnvPrefix},
		configProps,
	}
	if opts.Build != nil {
		props = append(properties.Chain{opts.Build}, props...)
	}
	env := opts.Env
	if env == nil {
		env = properties.Env{}
	}
	inputs, err := properties.Resolve(props, env)
	if err != nil {
		return nil, err
	}

	strict := false
	switch {
	case cfg.Toolchain.StrictVersions != nil:
		strict = *cfg.Toolchain.StrictVersions
	case inputs.StrictVersions != nil:
		strict = *inputs.StrictVersions
	}
	versions := toolchain.New(
		toolchain.WithTarget(cfg.Toolchain.Target),
		toolchain.WithMinimumToolchain(cfg.Toolchain.MinimumToolchain),
		toolchain.WithStrictVersions(strict),
		toolchain.WithPreviewFeatures(cfg.Toolchain.PreviewFeatures),
		toolchain.WithTestVersions(cfg.Toolchain.TestWith...),
	)

	cache := opts.Cache
	if cache == nil {
		cache = git.NewCache(git.WithCacheLogger(logger))
	}

	b := &Build{
		invocation: invocation,
		project:    project,
		versions:   versions,
		git:        cache.Get(project.Dir(), project.Name()),
		requireTag: cfg.Publishing.RequireTagForRelease,
		props:      props,
		metadata:   MetadataFromConfig(cfg.Metadata, project.Name(), project.Description()),
		registry:   publish.NewRegistry(),
		graph:      tasks.NewGraph(logger),
		remote:     opts.Remote,
		local:      opts.Local,
		signer:     opts.Signer,
		logger:     logger,
	}
	if b.remote == nil {
		b.remote = HTTPDeployerFactory(props)
	}
	if b.local == nil {
		root := cfg.Publishing.LocalRepository
		if root == "" {
			root = DefaultLocalRepository()
		}
		b.local = LocalRepository{Root: root}
	}
	if b.signer == nil {
		b.signer = GPGSigner{KeyName: cfg.Publishing.SigningKey}
	}
	b.gate = release.NewSigningGate(
		func() bool {
			_, ok := props.Lookup(properties.ForceSign)
			return ok
		},
		b.State,
	)

	if err := b.registerTasks(); err != nil {
		return nil, ierrors.Wrap(err, ierrors.GetKind(err), op, "failed to register tasks")
	}

	b.filter = publish.NewFilter(b.State, properties.Credentials(props),
		publish.WithLogger(logger),
		publish.WithEligibleHandler(b.addPublishTask),
	)
	b.filter.Attach(b.registry)

	for _, repo := range cfg.Repositories {
		if err := b.AddRepository(publish.RemoteRepository{
			Name:      repo.Name,
			URL:       repo.URL,
			Releases:  repo.Releases,
			Snapshots: repo.Snapshots,
		}); err != nil {
			return nil, err
		}
	}

	logger.Debug("publishing conventions applied",
		"version", project.Version(), "state", b.State(), "targets", len(b.filter.Targets()))
	return b, nil
}

func (b *Build) registerTasks() error {
	requireClean, err := b.graph.Register(TaskRequireClean, tasks.KindRequireClean)
	if err != nil {
		return err
	}
	requireClean.Describe("Fails when the git working tree has uncommitted changes").Do(b.requireClean)

	b.graph.ConfigureEach(tasks.KindSign, func(t *tasks.Task) {
		t.OnlyIf(b.gate.ShouldSign)
	})
	b.graph.ConfigureEach(tasks.KindPublishMaven, func(t *tasks.Task) {
		t.DependsOn(TaskRequireClean)
	})

	sign, err := b.graph.Register(TaskSign, tasks.KindSign)
	if err != nil {
		return err
	}
	sign.Describe("Signs the Maven publication").Do(b.sign)

	local, err := b.graph.Register(TaskPublishLocal, tasks.KindPublishMavenLocal)
	if err != nil {
		return err
	}
	local.Describe("Publishes to the local Maven repository").
		DependsOn(TaskSign).
		Do(func(ctx context.Context, _ *tasks.Task) error {
			a, err := b.Artifact()
			if err != nil {
				return err
			}
			return b.local.Deploy(ctx, a)
		})

	publishAll, err := b.graph.Register(TaskPublish, tasks.KindLifecycle)
	if err != nil {
		return err
	}
	publishAll.Describe("Publishes to every eligible remote repository")
	return nil
}

func (b *Build) requireClean(_ context.Context, _ *tasks.Task) error {
	const op = "publishing.requireClean"

	if !b.git.Present() {
		b.logger.Info("no git repository, skipping clean check")
		return nil
	}
	clean, err := b.git.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return ierrors.State(op, "the git working tree has uncommitted changes; commit or stash them before publishing")
	}
	return nil
}

func (b *Build) sign(ctx context.Context, _ *tasks.Task) error {
	const op = "publishing.sign"

	data, err := b.POM()
	if err != nil {
		return err
	}
	sig, err := b.signer.Sign(ctx, data)
	if err != nil {
		return ierrors.Wrap(err, ierrors.GetKind(err), op, "failed to sign "+b.project.Coordinates().String())
	}
	b.mu.Lock()
	b.signature = sig
	b.mu.Unlock()
	return nil
}

// addPublishTask is called by the filter for each eligible repository.
func (b *Build) addPublishTask(repo publish.RemoteRepository) {
	name := PublishTaskName(repo.Name)
	t, err := b.graph.Register(name, tasks.KindPublishMaven)
	if err != nil {
		b.logger.Error("failed to register publish task", "repository", repo.Name, "err", err)
		return
	}
	deployer := b.remote(repo)
	t.Describe("Publishes to the " + repo.Name + " repository").
		DependsOn(TaskSign).
		Do(func(ctx context.Context, _ *tasks.Task) error {
			a, err := b.Artifact()
			if err != nil {
				return err
			}
			return deployer.Deploy(ctx, a)
		})

	if all, ok := b.graph.Named(TaskPublish); ok {
		all.DependsOn(name)
	}
}

// PublishTaskName returns the task publishing to the named repository.
func PublishTaskName(repository string) string {
	if repository == "" {
		return "publishToRepository"
	}
	r := []rune(repository)
	r[0] = unicode.ToUpper(r[0])
	return "publishTo" + string(r) + "Repository"
}

// AddRepository declares a remote repository. It is evaluated for
// eligibility against the release state at the time it is added.
func (b *Build) AddRepository(repo publish.RemoteRepository) error {
	return b.registry.Add(repo)
}

// State returns the current release state. It follows version changes.
func (b *Build) State() release.State {
	head := release.HeadInfo{RepositoryPresent: b.git.Present()}
	if b.requireTag && head.RepositoryPresent {
		_, head.Tagged = b.git.TagAtHead()
	}
	return release.Resolve(b.project.Version(), b.requireTag, head)
}

// ShouldSign reports whether the sign task would run now.
func (b *Build) ShouldSign() bool {
	return b.gate.ShouldSign()
}

// POM renders the project's POM.
func (b *Build) POM() ([]byte, error) {
	return pom.Render(b.project.Coordinates(), b.metadata)
}

// Artifact returns the rendered POM and, when the sign task ran, its
// signature.
func (b *Build) Artifact() (Artifact, error) {
	data, err := b.POM()
	if err != nil {
		return Artifact{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Artifact{
		Coordinates: b.project.Coordinates(),
		POM:         data,
		Signature:   append([]byte(nil), b.signature...),
	}, nil
}

// Publish runs the targets, "publish" when none are given. With dryRun set
// predicates are evaluated and reported but no action runs.
func (b *Build) Publish(ctx context.Context, targets []string, dryRun bool) ([]tasks.Result, error) {
	if len(targets) == 0 {
		targets = []string{TaskPublish}
	}
	if _, err := b.POM(); err != nil {
		return nil, err
	}
	return b.graph.Execute(ctx, targets, tasks.WithDryRun(dryRun))
}

// Invocation identifies this build in logs and reports.
func (b *Build) Invocation() string { return b.invocation }

// Project returns the project.
func (b *Build) Project() *Project { return b.project }

// Versions returns the toolchain settings.
func (b *Build) Versions() *toolchain.Versions { return b.versions }

// Git returns the project's git provider.
func (b *Build) Git() *git.Provider { return b.git }

// Metadata returns the POM metadata.
func (b *Build) Metadata() pom.Metadata { return b.metadata }

// Graph returns the task graph.
func (b *Build) Graph() *tasks.Graph { return b.graph }

// Registry returns the declared repositories.
func (b *Build) Registry() *publish.Registry { return b.registry }

// Targets returns the eligible repositories.
func (b *Build) Targets() []publish.RemoteRepository { return b.filter.Targets() }

// Decisions returns the eligibility decisions in declaration order.
func (b *Build) Decisions() []publish.Decision { return b.filter.Decisions() }

// MetadataFromConfig assembles POM metadata. Explicit scm, ci and issues
// sections override what the hosting shortcut fills in.
func MetadataFromConfig(cfg config.MetadataConfig, name, description string) pom.Metadata {
	m := pom.Metadata{Name: name, Description: description}

	switch {
	case cfg.GitHub != nil:
		m.GitHub(cfg.GitHub.User, cfg.GitHub.Repo, cfg.GitHub.CI)
	case cfg.GitLab != nil:
		m.GitLab(cfg.GitLab.User, cfg.GitLab.Repo, cfg.GitLab.CI)
	}

	if cfg.License.ID != "" {
		if l, ok := pom.LicenseByID(cfg.License.ID); ok {
			m.License = &l
		}
	} else if cfg.License.Name != "" {
		m.License = &pom.License{Name: cfg.License.Name, URL: cfg.License.URL}
	}

	if s := cfg.SCM; s != nil {
		m.SCM = &pom.SCM{Connection: s.Connection, DeveloperConnection: s.DeveloperConnection, URL: s.URL}
	}
	if c := cfg.CI; c != nil {
		m.CI = &pom.CI{System: c.System, URL: c.URL}
	}
	if i := cfg.Issues; i != nil {
		m.Issues = &pom.Issues{System: i.System, URL: i.URL}
	}
	return m
}

// HTTPDeployerFactory uploads over HTTP, reading each repository's
// credentials from src.
func HTTPDeployerFactory(src properties.Source, opts ...HTTPOption) DeployerFactory {
	return func(repo publish.RemoteRepository) Deployer {
		username, _ := src.Lookup(repo.UsernameProperty())
		password, _ := src.Lookup(repo.PasswordProperty())
		return NewHTTPDeployer(repo, strings.TrimSpace(username), password, opts...)
	}
}

package publish

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/relicta-tech/indra/internal/release"
)

// CredentialLookup reports which credentials are available for a repository.
type CredentialLookup func(RemoteRepository) Credentials

// Filter evaluates each repository of a registry as it is declared and keeps
// the ones the build may publish to.
type Filter struct {
	state      func() release.State
	creds      CredentialLookup
	logger     *log.Logger
	onEligible []func(RemoteRepository)

	mu        sync.Mutex
	decisions []Decision
	targets   []RemoteRepository
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithLogger sets the logger decisions are written to.
func WithLogger(logger *log.Logger) FilterOption {
	return func(f *Filter) { f.logger = logger }
}

// WithEligibleHandler registers a callback run for every eligible repository.
func WithEligibleHandler(fn func(RemoteRepository)) FilterOption {
	return func(f *Filter) { f.onEligible = append(f.onEligible, fn) }
}

// NewFilter creates a filter. state is sampled when each repository is
// evaluated, not when the filter is created.
func NewFilter(state func() release.State, creds CredentialLookup, opts ...FilterOption) *Filter {
	f := &Filter{state: state, creds: creds}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = discardLogger()
	}
	if f.creds == nil {
		f.creds = func(RemoteRepository) Credentials { return Credentials{} }
	}
	return f
}

// Attach subscribes the filter to registry.
func (f *Filter) Attach(registry *Registry) {
	registry.OnRepositoryAdded(f.Evaluate)
}

// Evaluate decides eligibility for a single repository and records it.
func (f *Filter) Evaluate(repo RemoteRepository) {
	d := Eligible(repo, f.state(), f.creds(repo))
	d.Log(f.logger)

	f.mu.Lock()
	f.decisions = append(f.decisions, d)
	if d.Eligible {
		f.targets = append(f.targets, repo)
	}
	f.mu.Unlock()

	if d.Eligible {
		for _, fn := range f.onEligible {
			fn(repo)
		}
	}
}

// Targets returns the eligible repositories seen so far.
func (f *Filter) Targets() []RemoteRepository {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RemoteRepository{}, f.targets...)
}

// Decisions returns every decision made so far.
func (f *Filter) Decisions() []Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Decision{}, f.decisions...)
}

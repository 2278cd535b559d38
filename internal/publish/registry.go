package publish

import (
	"fmt"
	"net/url"
	"sync"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// Registry is a growable, named collection of remote repositories. Observers
// registered with OnRepositoryAdded see every repository exactly once, whether
// it was added before or after they subscribed.
type Registry struct {
	mu        sync.Mutex
	repos     []RemoteRepository
	names     map[string]struct{}
	observers []func(RemoteRepository)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Add declares a repository. Names must be unique and URLs must be absolute,
// with a scheme and a host.
func (r *Registry) Add(repo RemoteRepository) error {
	const op = "publish.Registry.Add"

	if repo.Name == "" {
		return ierrors.Config(op, "repository name is required")
	}
	if !ValidURL(repo.URL) {
		return ierrors.Config(op, fmt.Sprintf("repository %s has an invalid url %q", repo.Name, repo.URL))
	}

	r.mu.Lock()
	if _, exists := r.names[repo.Name]; exists {
		r.mu.Unlock()
		return ierrors.Config(op, fmt.Sprintf("repository %s is already declared", repo.Name))
	}
	r.names[repo.Name] = struct{}{}
	r.repos = append(r.repos, repo)
	observers := append([]func(RemoteRepository){}, r.observers...)
	r.mu.Unlock()

	for _, observe := range observers {
		observe(repo)
	}
	return nil
}

// OnRepositoryAdded registers cb. It is invoked immediately for each
// repository already declared and afterwards for each new one.
func (r *Registry) OnRepositoryAdded(cb func(RemoteRepository)) {
	r.mu.Lock()
	existing := append([]RemoteRepository{}, r.repos...)
	r.observers = append(r.observers, cb)
	r.mu.Unlock()

	for _, repo := range existing {
		cb(repo)
	}
}

// All returns the declared repositories in declaration order.
func (r *Registry) All() []RemoteRepository {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RemoteRepository{}, r.repos...)
}

// Len returns the number of declared repositories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.repos)
}

// ValidURL reports whether raw is an absolute URL with a scheme and a host.
func ValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

package publishing

import (
	"path/filepath"
	"sync"

	"github.com/relicta-tech/indra/internal/config"
	"github.com/relicta-tech/indra/internal/pom"
)

// Project is a publishable project. Subprojects copy the root's group,
// version and description when they are created.
type Project struct {
	name string
	dir  string
	root *Project

	mu          sync.RWMutex
	group       string
	version     string
	description string
}

// NewProject creates a root project. An empty name defaults to the base
// name of dir.
func NewProject(cfg config.ProjectConfig, dir string) *Project {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	name := cfg.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	return &Project{
		name:        name,
		dir:         dir,
		group:       cfg.Group,
		version:     cfg.Version,
		description: cfg.Description,
	}
}

// Subproject creates a child project in dir, relative to the root's
// directory unless absolute.
func (p *Project) Subproject(name, dir string) *Project {
	root := p.Root()
	if dir == "" {
		dir = name
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root.dir, dir)
	}

	root.mu.RLock()
	defer root.mu.RUnlock()
	return &Project{
		name:        name,
		dir:         dir,
		root:        root,
		group:       root.group,
		version:     root.version,
		description: root.description,
	}
}

// Root returns the root project.
func (p *Project) Root() *Project {
	if p.root == nil {
		return p
	}
	return p.root
}

// IsRoot reports whether p is the root project.
func (p *Project) IsRoot() bool { return p.root == nil }

// Name returns the artifact id.
func (p *Project) Name() string { return p.name }

// Dir returns the absolute project directory.
func (p *Project) Dir() string { return p.dir }

// Group returns the group id.
func (p *Project) Group() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.group
}

// Version returns the current version.
func (p *Project) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// SetVersion changes the version. Release state and signing decisions made
// after the change see the new value.
func (p *Project) SetVersion(version string) {
	p.mu.Lock()
	p.version = version
	p.mu.Unlock()
}

// Description returns the description.
func (p *Project) Description() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.description
}

// Coordinates returns the project's Maven coordinates.
func (p *Project) Coordinates() pom.Coordinates {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return pom.Coordinates{GroupID: p.group, ArtifactID: p.name, Version: p.version}
}

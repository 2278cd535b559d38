// Package git provides read-only, fail-soft access to the git metadata of a
// project: HEAD commit, branch, tags, the tag at HEAD and a describe string.
//
// Every query degrades to an absent result plus a logged error instead of
// returning an error, so optional git metadata never fails a build.
package git

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// shortHashLength is the abbreviated object id length used by Describe.
const shortHashLength = 7

// Provider answers git metadata queries for one project directory.
// A Provider with no repository answers every query with an absent value.
type Provider struct {
	dir    string
	label  string
	repo   *git.Repository
	logger *log.Logger
}

// Open discovers the repository containing dir, searching parent directories.
// When none is found the returned Provider is absent.
func Open(dir, label string, logger *log.Logger) *Provider {
	p := NewProvider(nil, label, logger)
	p.dir = dir

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	switch {
	case err == nil:
		p.repo = repo
	case errors.Is(err, git.ErrRepositoryNotExists):
		p.logger.Info("no git repository found", "project", label, "dir", dir)
	default:
		p.logger.Error("failed to open git repository", "project", label, "dir", dir, "err", err)
	}
	return p
}

// NewProvider wraps an already opened repository. repo may be nil.
func NewProvider(repo *git.Repository, label string, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Provider{label: label, repo: repo, logger: logger}
}

// Present reports whether a repository was found.
func (p *Provider) Present() bool {
	return p != nil && p.repo != nil
}

// Repository returns the underlying repository, or nil when absent.
func (p *Provider) Repository() *git.Repository {
	if p == nil {
		return nil
	}
	return p.repo
}

// Commit returns the object id HEAD resolves to.
func (p *Provider) Commit() (plumbing.Hash, bool) {
	if !p.Present() {
		return plumbing.ZeroHash, false
	}
	head, err := p.repo.Head()
	if err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			p.logger.Error("failed to query git for the current HEAD commit", "project", p.label, "err", err)
		}
		return plumbing.ZeroHash, false
	}
	return head.Hash(), true
}

// Branch returns the reference HEAD points at. It is absent when HEAD is
// detached or missing.
func (p *Provider) Branch() (plumbing.ReferenceName, bool) {
	if !p.Present() {
		return "", false
	}
	ref, err := p.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			p.logger.Error("failed to query current branch name from git", "project", p.label, "err", err)
		}
		return "", false
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", false
	}
	return ref.Target(), true
}

// BranchName returns the short name of the current branch.
func (p *Provider) BranchName() (string, bool) {
	branch, ok := p.Branch()
	if !ok {
		return "", false
	}
	return branch.Short(), true
}

// Tags returns every tag reference. The list is either complete or empty.
func (p *Provider) Tags() []*plumbing.Reference {
	if !p.Present() {
		return nil
	}
	tags, err := p.listTags()
	if err != nil {
		p.logger.Error("failed to query git for a list of tags", "project", p.label, "err", err)
		return nil
	}
	return tags
}

func (p *Provider) listTags() ([]*plumbing.Reference, error) {
	const op = "git.listTags"

	iter, err := p.repo.Tags()
	if err != nil {
		return nil, ierrors.GitWrap(err, op, "failed to get tags iterator")
	}
	defer iter.Close()

	var tags []*plumbing.Reference
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref)
		return nil
	}); err != nil {
		return nil, ierrors.GitWrap(err, op, "failed to iterate tags")
	}
	return tags, nil
}

// peel follows annotated tag objects until a non-tag object is reached.
func (p *Provider) peel(hash plumbing.Hash) (plumbing.Hash, error) {
	for {
		obj, err := p.repo.Object(plumbing.AnyObject, hash)
		if err != nil {
			return plumbing.ZeroHash, ierrors.GitWrap(err, "git.peel", fmt.Sprintf("failed to read object %s", hash))
		}
		tag, ok := obj.(*object.Tag)
		if !ok {
			return obj.ID(), nil
		}
		hash = tag.Target
	}
}

// TagAtHead returns a tag pointing at the HEAD commit, peeling annotated
// tags. When several tags match, the first in go-git's enumeration order is
// returned; that order is not guaranteed to be stable.
func (p *Provider) TagAtHead() (*plumbing.Reference, bool) {
	head, ok := p.Commit()
	if !ok {
		return nil, false
	}
	tags, err := p.listTags()
	if err != nil {
		p.logger.Error("failed to resolve current HEAD tag", "project", p.label, "err", err)
		return nil, false
	}
	for _, tag := range tags {
		commit, err := p.peel(tag.Hash())
		if err != nil {
			p.logger.Error("failed to resolve current HEAD tag", "project", p.label, "err", err)
			return nil, false
		}
		if commit == head {
			return tag, true
		}
	}
	return nil, false
}

// Describe returns "<tag>-<distance>-g<short hash>" for HEAD in the long
// form of git describe --tags. The distance is the number of commits
// reachable from HEAD but not from the tag; the tag with the smallest
// distance wins, and among equals the one on the most recently committed
// commit. It is absent when the repository has no commits or no tag is
// reachable.
func (p *Provider) Describe() (string, bool) {
	head, ok := p.Commit()
	if !ok {
		return "", false
	}
	describe, err := p.describe(head)
	if err != nil {
		p.logger.Error("failed to query git for a 'describe' result", "project", p.label, "err", err)
		return "", false
	}
	return describe, describe != ""
}

func (p *Provider) describe(head plumbing.Hash) (string, error) {
	tags, err := p.listTags()
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", nil
	}

	byCommit := make(map[plumbing.Hash]string, len(tags))
	for _, tag := range tags {
		commit, err := p.peel(tag.Hash())
		if err != nil {
			return "", err
		}
		if _, seen := byCommit[commit]; !seen {
			byCommit[commit] = tag.Name().Short()
		}
	}

	reachable, err := p.ancestors(head, nil)
	if err != nil {
		return "", err
	}

	var (
		name     string
		distance = -1
		when     time.Time
	)
	for commit, tag := range byCommit {
		c, ok := reachable[commit]
		if !ok {
			continue
		}
		fromTag, err := p.ancestors(commit, reachable)
		if err != nil {
			return "", err
		}
		d := len(reachable) - len(fromTag)
		better := distance < 0 || d < distance ||
			(d == distance && c.Committer.When.After(when)) ||
			(d == distance && c.Committer.When.Equal(when) && tag < name)
		if better {
			name, distance, when = tag, d, c.Committer.When
		}
	}
	if name == "" {
		return "", nil
	}
	return fmt.Sprintf("%s-%d-g%s", name, distance, head.String()[:shortHashLength]), nil
}

// ancestors returns from and every commit reachable from it through parent
// links. When known is set, commits are taken from it instead of being read
// from the object store.
func (p *Provider) ancestors(from plumbing.Hash, known map[plumbing.Hash]*object.Commit) (map[plumbing.Hash]*object.Commit, error) {
	const op = "git.ancestors"

	seen := make(map[plumbing.Hash]*object.Commit)
	queue := []plumbing.Hash{from}
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if _, ok := seen[hash]; ok {
			continue
		}
		c, ok := known[hash]
		if !ok {
			var err error
			c, err = p.repo.CommitObject(hash)
			if err != nil {
				return nil, ierrors.GitWrap(err, op, fmt.Sprintf("failed to read commit %s", hash))
			}
		}
		seen[hash] = c
		queue = append(queue, c.ParentHashes...)
	}
	return seen, nil
}

// IsClean reports whether the working tree has no uncommitted changes.
// Unlike the metadata queries it returns its error, since callers use it as
// a precondition.
func (p *Provider) IsClean() (bool, error) {
	const op = "git.IsClean"

	if !p.Present() {
		return false, ierrors.NotFound(op, "no git repository")
	}
	worktree, err := p.repo.Worktree()
	if err != nil {
		return false, ierrors.GitWrap(err, op, "failed to get worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return false, ierrors.GitWrap(err, op, "failed to get worktree status")
	}
	return status.IsClean(), nil
}

// Close releases the repository storage, if it holds open files.
func (p *Provider) Close() error {
	if !p.Present() {
		return nil
	}
	if closer, ok := p.repo.Storer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

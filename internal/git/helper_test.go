package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// testRepoHelper provides helper functions for creating test git repositories.
type testRepoHelper struct {
	t       *testing.T
	repoDir string
	repo    *git.Repository
	commits int
}

// newTestRepo creates a new test repository in a temporary directory.
func newTestRepo(t *testing.T) *testRepoHelper {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("failed to init test repo: %v", err)
	}

	return &testRepoHelper{t: t, repoDir: repoDir, repo: repo}
}

// makeCommit creates a test commit in the repository.
func (h *testRepoHelper) makeCommit(message string) plumbing.Hash {
	h.t.Helper()
	return h.makeCommitWithParents(message)
}

// makeCommitWithParents creates a commit with explicit parents and moves the
// current branch to it. Without parents HEAD is used.
func (h *testRepoHelper) makeCommitWithParents(message string, parents ...plumbing.Hash) plumbing.Hash {
	h.t.Helper()

	filename := filepath.Join(h.repoDir, "test.txt")
	if err := os.WriteFile(filename, []byte(message), 0o644); err != nil {
		h.t.Fatalf("failed to write test file: %v", err)
	}

	worktree, err := h.repo.Worktree()
	if err != nil {
		h.t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add("test.txt"); err != nil {
		h.t.Fatalf("failed to stage file: %v", err)
	}

	// distinct, increasing timestamps keep committer-time ordering stable
	h.commits++
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Parents: parents,
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Date(2024, time.January, 1, 0, h.commits, 0, 0, time.UTC),
		},
	})
	if err != nil {
		h.t.Fatalf("failed to commit: %v", err)
	}
	return hash
}

// makeTag tags HEAD. An empty message creates a lightweight tag.
func (h *testRepoHelper) makeTag(name, message string) {
	h.t.Helper()

	head, err := h.repo.Head()
	if err != nil {
		h.t.Fatalf("failed to get HEAD: %v", err)
	}

	if message != "" {
		_, err = h.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
			Message: message,
			Tagger: &object.Signature{
				Name:  "Test Tagger",
				Email: "tagger@example.com",
				When:  time.Now(),
			},
		})
	} else {
		ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), head.Hash())
		err = h.repo.Storer.SetReference(ref)
	}
	if err != nil {
		h.t.Fatalf("failed to create tag: %v", err)
	}
}

// detach points HEAD directly at the current commit.
func (h *testRepoHelper) detach() {
	h.t.Helper()

	head, err := h.repo.Head()
	if err != nil {
		h.t.Fatalf("failed to get HEAD: %v", err)
	}
	if err := h.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, head.Hash())); err != nil {
		h.t.Fatalf("failed to detach HEAD: %v", err)
	}
}

// head returns the commit HEAD resolves to.
func (h *testRepoHelper) head() plumbing.Hash {
	h.t.Helper()

	head, err := h.repo.Head()
	if err != nil {
		h.t.Fatalf("failed to get HEAD: %v", err)
	}
	return head.Hash()
}

// reset moves the current branch to hash without touching the worktree.
func (h *testRepoHelper) reset(hash plumbing.Hash) {
	h.t.Helper()

	ref, err := h.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		h.t.Fatalf("failed to read HEAD: %v", err)
	}
	if err := h.repo.Storer.SetReference(plumbing.NewHashReference(ref.Target(), hash)); err != nil {
		h.t.Fatalf("failed to reset branch: %v", err)
	}
}

package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
	when time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{
		t:    t,
		dir:  dir,
		repo: repo,
		wt:   wt,
		when: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *testRepo) write(name string, data []byte) {
	r.t.Helper()
	full := filepath.Join(r.dir, name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, data, 0o644))
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

func (r *testRepo) remove(name string) {
	r.t.Helper()
	_, err := r.wt.Remove(name)
	require.NoError(r.t, err)
}

func (r *testRepo) move(from, to string) {
	r.t.Helper()
	_, err := r.wt.Move(from, to)
	require.NoError(r.t, err)
}

func (r *testRepo) commit(msg string) plumbing.Hash {
	r.t.Helper()
	r.when = r.when.Add(time.Hour)
	sig := &object.Signature{Name: "Jane Doe", Email: "jane@example.com", When: r.when}
	hash, err := r.wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(r.t, err)
	return hash
}

func (r *testRepo) branch(name string, at plumbing.Hash) *plumbing.Reference {
	r.t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), at)
	require.NoError(r.t, r.repo.Storer.SetReference(ref))
	return ref
}

func (r *testRepo) checkout(name string) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}))
}

func (r *testRepo) ref(name string) *plumbing.Reference {
	r.t.Helper()
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	require.NoError(r.t, err)
	return ref
}

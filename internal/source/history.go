package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/internal/pathglob"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrNoBranches    = errors.New("no branch to scan")
)

const remoteName = "origin"

// HistoryIterator walks the commit history of the repository at Path and
// yields one file per changed blob of every commit transition.
//
// Transitions shared by several branches are diffed once per iterator. The
// oldest commit reached on each branch is diffed against the empty tree so
// the initial content is scanned too.
type HistoryIterator struct {
	Path    string
	Branch  string
	Depth   int // commits per branch, 0 for no limit
	Since   string // full or abbreviated commit hash
	Exclude []string
	Auth    transport.AuthMethod

	since plumbing.Hash
	seen  map[string]struct{}
	diffs int
}

// Diffs returns how many commit transitions were diffed so far.
func (h *HistoryIterator) Diffs() int { return h.diffs }

func (h *HistoryIterator) Walk(ctx context.Context, fn func(*File) error) error {
	repo, err := git.PlainOpen(h.Path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return fmt.Errorf("%w: %s", ErrNotRepository, h.Path)
		}
		return fmt.Errorf("open %s: %w", h.Path, err)
	}

	refs, err := h.branches(ctx, repo)
	if err != nil {
		return err
	}
	h.resolveSince(repo)
	return h.walkRefs(ctx, repo, refs, fn)
}

// resolveSince expands Since to a full hash. A revision that cannot be
// resolved is logged and the whole history is walked.
func (h *HistoryIterator) resolveSince(repo *git.Repository) {
	h.since = plumbing.ZeroHash
	if h.Since == "" {
		return
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(h.Since))
	if err != nil {
		logger.Log.Warnf("since '%s' not found, scanning full history: %v", h.Since, err)
		return
	}
	h.since = *hash
}

// Files collects every file of the walk.
func (h *HistoryIterator) Files(ctx context.Context) ([]*File, error) {
	var files []*File
	err := h.Walk(ctx, func(f *File) error {
		files = append(files, f)
		return nil
	})
	return files, err
}

// TransitionKey identifies a commit transition independently of the
// direction it is walked in.
func TransitionKey(a, b plumbing.Hash) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ".." + y
}

// branches resolves the refs to walk: remote branches fetched from origin,
// then the named local branch, then the checked out HEAD.
func (h *HistoryIterator) branches(ctx context.Context, repo *git.Repository) ([]*plumbing.Reference, error) {
	refs, err := h.fetch(ctx, repo)
	switch {
	case err != nil:
		logger.Log.Warnf("fetching remote branches: %v", err)
	case len(refs) > 0:
		return refs, nil
	}

	if h.Branch != "" {
		ref, err := repo.Reference(plumbing.NewBranchReferenceName(h.Branch), true)
		if err == nil {
			return []*plumbing.Reference{ref}, nil
		}
		logger.Log.Warnf("local branch '%s': %v", h.Branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBranches, err)
	}
	return []*plumbing.Reference{head}, nil
}

func (h *HistoryIterator) fetch(ctx context.Context, repo *git.Repository) ([]*plumbing.Reference, error) {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			logger.Log.Warn("missing remotes")
			return nil, nil
		}
		return nil, err
	}

	src := "*"
	if h.Branch != "" {
		src = h.Branch
	}
	spec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", src, remoteName, src))
	err = remote.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       h.Auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, err
	}

	iter, err := repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	prefix := "refs/remotes/" + remoteName + "/"
	var refs []*plumbing.Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name, ok := strings.CutPrefix(ref.Name().String(), prefix)
		if !ok || name == "HEAD" {
			return nil
		}
		if h.Branch != "" && name != h.Branch {
			return nil
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name() < refs[j].Name() })
	return refs, nil
}

func (h *HistoryIterator) walkRefs(ctx context.Context, repo *git.Repository, refs []*plumbing.Reference, fn func(*File) error) error {
	if h.seen == nil {
		h.seen = make(map[string]struct{})
	}
	for _, ref := range refs {
		if err := h.walkBranch(ctx, repo, ref, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *HistoryIterator) walkBranch(ctx context.Context, repo *git.Repository, ref *plumbing.Reference, fn func(*File) error) error {
	branch := ref.Name().Short()
	logger.Log.Infof("switching to branch '%s'", branch)

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return fmt.Errorf("log %s: %w", branch, err)
	}
	defer iter.Close()

	var (
		prev, oldest *object.Commit
		sinceReached bool
		count        int
	)
	err = iter.ForEach(func(curr *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.Depth > 0 && count >= h.Depth {
			return storer.ErrStop
		}
		count++
		oldest = curr

		if !h.since.IsZero() && curr.Hash == h.since {
			sinceReached = true
			return storer.ErrStop
		}
		if prev == nil {
			prev = curr
			return nil
		}

		key := TransitionKey(prev.Hash, curr.Hash)
		if _, ok := h.seen[key]; ok {
			prev = curr
			return nil
		}
		h.seen[key] = struct{}{}
		h.diffs++

		if err := h.emit(ctx, curr, prev, branch, fn); err != nil {
			return err
		}
		prev = curr
		return nil
	})
	if err != nil {
		return err
	}

	if sinceReached || oldest == nil {
		return nil
	}
	if !h.since.IsZero() {
		logger.Log.Warnf("since %s not reached on branch '%s'", h.since, branch)
	}
	return h.emit(ctx, nil, oldest, branch, fn)
}

// emit diffs older against newer and yields the surviving blobs attributed
// to newer. A nil older stands for the empty tree.
func (h *HistoryIterator) emit(ctx context.Context, older, newer *object.Commit, branch string, fn func(*File) error) error {
	from := &object.Tree{}
	if older != nil {
		t, err := older.Tree()
		if err != nil {
			return fmt.Errorf("tree of %s: %w", older.Hash, err)
		}
		from = t
	}
	to, err := newer.Tree()
	if err != nil {
		return fmt.Errorf("tree of %s: %w", newer.Hash, err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return fmt.Errorf("diff %s: %w", newer.Hash, err)
	}

	exclude := excludeSet(h.Exclude)
	for _, change := range changes {
		f, err := unit(ctx, change, newer, branch, exclude)
		if err != nil {
			logger.Log.Warnf("skipping diff in %s: %v", newer.Hash, err)
			continue
		}
		if f == nil {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func unit(ctx context.Context, change *object.Change, commit *object.Commit, branch string, exclude []string) (*File, error) {
	action, err := change.Action()
	if err != nil {
		return nil, err
	}
	if action == merkletrie.Delete {
		return nil, nil
	}
	if change.From.Name != "" && change.From.Name != change.To.Name &&
		change.From.TreeEntry.Hash == change.To.TreeEntry.Hash {
		logger.Log.Debugf("skipping rename '%s' -> '%s'", change.From.Name, change.To.Name)
		return nil, nil
	}

	path := change.To.Name
	if path == "" {
		path = change.From.Name
	}
	if pattern := pathglob.Match(path, exclude, true); pattern != "" {
		logger.Log.Debugf("skipping diff '%s': '%s'", path, pattern)
		return nil, nil
	}

	patch, err := change.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			logger.Log.Debugf("skipping binary diff '%s'", path)
			return nil, nil
		}
	}

	content := hunks(patch.String())
	return &File{
		Path:    path,
		Branch:  branch,
		Message: strings.TrimSpace(commit.Message),
		Commit:  commit.Hash.String(),
		Author:  fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		Date:    commit.Committer.When.Format(time.RFC3339),
		content: &content,
	}, nil
}

// hunks strips the file header of a unified diff. Hunk headers start a
// line, so an "@@" inside a file name is never taken for one.
func hunks(patch string) string {
	if strings.HasPrefix(patch, "@@") {
		return strings.ToValidUTF8(patch, "\uFFFD")
	}
	if i := strings.Index(patch, "\n@@"); i >= 0 {
		return strings.ToValidUTF8(patch[i+1:], "\uFFFD")
	}
	return ""
}

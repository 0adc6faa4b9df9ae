package worktree

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/mail"
)

var (
	ErrFetch    = errors.New("fetching base branch failed")
	ErrWorktree = errors.New("adding worktree failed")
	ErrApply    = errors.New("applying patch failed")
)

// Worktree is a throwaway checkout of the target repo with the mailed
// patch applied on a fresh branch. It lives in the worktree cache and
// survives the process unless Cleanup is called.
type Worktree struct {
	L hclog.Logger

	Base   string
	Branch string

	// Dir is the allocated cache dir; RepoDir the checkout below it.
	Dir     string
	RepoDir string

	cfg *config.Config
	msg *mail.Message
}

func New(cfg *config.Config, msg *mail.Message) (*Worktree, error) {
	if cfg.RepoPath == "" {
		return nil, errors.Errorf("no target repository configured")
	}

	slug := msg.Slug()
	if slug == "" {
		return nil, errors.Errorf("subject yields an empty slug")
	}

	dir, err := cfg.CacheDirFor(slug)
	if err != nil {
		return nil, err
	}

	w := &Worktree{
		L:       hclog.L().Named("worktree"),
		Base:    cfg.BaseBranch,
		Branch:  cfg.BranchNS + "/" + slug,
		Dir:     dir,
		RepoDir: filepath.Join(dir, "repo"),
		cfg:     cfg,
		msg:     msg,
	}

	return w, nil
}

// Setup fetches the base branch, adds a worktree on a new branch off
// origin/<base>, and applies the patch.
func (w *Worktree) Setup(ctx context.Context) error {
	err := w.fetchBase(ctx)
	if err != nil {
		return err
	}

	err = w.git(ctx, w.cfg.RepoPath, nil,
		"worktree", "add", w.RepoDir, "-b", w.Branch, "origin/"+w.Base)
	if err != nil {
		return errors.Wrapf(ErrWorktree, "%v", err)
	}

	// --message-id keeps the mail's id in the commit trailer so the
	// resulting branch can be traced back to the list.
	err = w.git(ctx, w.RepoDir, bytes.NewReader(w.msg.Bytes()),
		"am", "--message-id")
	if err != nil {
		return errors.Wrapf(ErrApply, "%v", err)
	}

	return nil
}

func (w *Worktree) fetchBase(ctx context.Context) error {
	repo, err := git.PlainOpen(w.cfg.RepoPath)
	if err != nil {
		return errors.Wrapf(ErrFetch, "opening %s: %v", w.cfg.RepoPath, err)
	}

	spec := gitconfig.RefSpec(
		fmt.Sprintf("refs/heads/%s:refs/remotes/origin/%s", w.Base, w.Base))

	w.L.Debug("fetching base branch", "base", w.Base, "repo", w.cfg.RepoPath)

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return errors.Wrapf(ErrFetch, "%v", err)
	}

	return nil
}

// Cleanup removes the cache dir and prunes the worktree registration
// from the target repo.
func (w *Worktree) Cleanup(ctx context.Context) error {
	err := os.RemoveAll(w.Dir)
	if err != nil {
		return err
	}

	return w.git(ctx, w.cfg.RepoPath, nil, "worktree", "prune")
}

func (w *Worktree) git(ctx context.Context, dir string, stdin io.Reader, args ...string) error {
	w.L.Debug("$ git " + strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdin = stdin

	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Errorf("git %s: %v: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	return nil
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/liballeg/allegro-android/internal/msg"
)

var shortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

// SourceDir is where git sources are cloned, below the destination path.
const SourceDir = "allegro-src"

var errEmptySource = errors.New("empty source")

// GitURL is a parsed git source: url[@branch][#revision].
type GitURL struct {
	URL      string
	Branch   string
	Revision string
}

// ParseGitURL parses src when it names a git repository, either with the
// "git:" prefix or a host shortcut such as "gh:liballeg/allegro5".
func ParseGitURL(src string) (GitURL, bool) {
	var raw string
	switch {
	case strings.HasPrefix(src, gitPrefix):
		raw = src[len(gitPrefix):]
	default:
		for short, base := range shortcuts {
			if strings.HasPrefix(src, short) {
				raw = base + src[len(short):]
				break
			}
		}
	}
	if raw == "" {
		return GitURL{}, false
	}

	var g GitURL
	raw, g.Revision, _ = strings.Cut(raw, "#")
	if i := strings.LastIndex(raw, "@"); i > strings.Index(raw, "://")+2 && !strings.Contains(raw[i:], "/") {
		raw, g.Branch = raw[:i], raw[i+1:]
	}
	if !strings.HasSuffix(raw, ".git") {
		raw += ".git"
	}
	g.URL = raw
	return g, true
}

// Source resolves the Allegro source argument. A git source is cloned into
// <Dir>/allegro-src unless that already exists; anything else is a local
// path and is returned in absolute form.
func (f *Fetcher) Source(ctx context.Context, src string) (string, error) {
	if src == "" {
		return "", errEmptySource
	}
	g, ok := ParseGitURL(src)
	if !ok {
		abs, err := filepath.Abs(src)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("allegro source: %w", err)
		}
		return abs, nil
	}
	dir := filepath.Join(f.Dir, SourceDir)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return dir, nil
	}
	msg.Info("cloning %s", g.URL)
	if err := clone(ctx, g, dir); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

func clone(ctx context.Context, g GitURL, dir string) error {
	opts := &git.CloneOptions{
		URL:               g.URL,
		Progress:          &msg.IndentWriter{Indent: "  ", W: msg.Stdout()},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}
	if g.Revision == "" {
		opts.Depth = 1
	}
	if g.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.Branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dir, opts)
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", g.URL, err)
	}
	if g.Revision == "" {
		return nil
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("could not get worktree: %w", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(g.Revision))
	if err != nil {
		return fmt.Errorf("could not resolve revision `%s`: %w", g.Revision, err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout `%s`: %w", g.Revision, err)
	}
	return nil
}

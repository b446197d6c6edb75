// Package gitmeta stamps pages with commit metadata from the git work tree
// containing the site source.
package gitmeta

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/winterholm/staticpress/internal/logfields"
	"github.com/winterholm/staticpress/internal/site"
)

// MetaName is the meta entry name stamped onto pages.
const MetaName = "last-modified"

// Stamper annotates pages with the commit time of their source file.
type Stamper struct {
	repo *git.Repository
	root string // work tree root
	dir  string // absolute source directory
}

// Open locates the git work tree containing dir. The source tree may live
// anywhere inside the repository, so discovery walks upward from dir.
func Open(dir string) (*Stamper, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir: %w", err)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", abs, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("resolve work tree: %w", err)
	}
	return &Stamper{repo: repo, root: wt.Filesystem.Root(), dir: abs}, nil
}

// Stamp adds a last-modified meta entry to every page whose source file has
// commit history, and returns how many pages it stamped. Pages without an
// on-disk source or without history are left untouched.
func (s *Stamper) Stamp(ctx context.Context, pages []site.Page) (int, error) {
	stamped := 0
	for i := range pages {
		select {
		case <-ctx.Done():
			return stamped, ctx.Err()
		default:
		}
		rel, ok := s.sourceFor(pages[i].Path)
		if !ok {
			continue
		}
		when, err := s.lastCommitTime(rel)
		if err != nil {
			slog.Debug("No commit history for page source", logfields.Page(pages[i].Path), logfields.Path(rel))
			continue
		}
		pages[i].AddMeta(MetaName, when.UTC().Format(time.RFC3339))
		stamped++
	}
	return stamped, nil
}

// sourceFor maps a page path back to its markdown source, relative to the
// work tree root. "/" and directory paths come from index.md or README.md;
// "/a/b.html" comes from a/b.md.
func (s *Stamper) sourceFor(pagePath string) (string, bool) {
	trimmed := strings.TrimPrefix(pagePath, "/")
	var candidates []string
	switch {
	case trimmed == "" || strings.HasSuffix(trimmed, "/"):
		candidates = []string{trimmed + "index.md", trimmed + "README.md"}
	case strings.HasSuffix(trimmed, ".html"):
		candidates = []string{strings.TrimSuffix(trimmed, ".html") + ".md"}
	default:
		candidates = []string{trimmed + ".md"}
	}
	for _, c := range candidates {
		full := filepath.Join(s.dir, filepath.FromSlash(c))
		if _, err := os.Stat(full); err != nil {
			continue
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// lastCommitTime returns the committer time of the newest commit touching rel.
func (s *Stamper) lastCommitTime(rel string) (time.Time, error) {
	head, err := s.repo.Head()
	if err != nil {
		return time.Time{}, err
	}
	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return time.Time{}, err
	}
	defer iter.Close()
	c, err := iter.Next()
	if err != nil {
		// io.EOF when the file never appeared in history.
		return time.Time{}, err
	}
	return c.Committer.When, nil
}

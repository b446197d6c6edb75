// Package emit renders every page of the site model and writes the
// results under the output directory. Pages render concurrently; a failed
// render skips that page without stopping the rest.
package emit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/winterholm/staticpress/internal/logfields"
	"github.com/winterholm/staticpress/internal/renderer"
	"github.com/winterholm/staticpress/internal/site"
)

// NotFoundPath is the synthetic fallback page path, emitted only when the
// site model does not already carry a page there.
const NotFoundPath = "/404.html"

// Renderer is the per-page rendering surface the emitter needs.
type Renderer interface {
	RenderToString(ctx context.Context, rc renderer.Context) (string, error)
}

// PageFailure records one page whose render failed and was skipped.
type PageFailure struct {
	Path    string
	Message string
	Stack   string
}

// Result summarizes an emit run. Render failures live in Failed; they are
// never returned as an error.
type Result struct {
	Written []string // output-relative file paths, sorted
	Failed  []PageFailure
}

// Emitter writes rendered pages under OutputDir.
type Emitter struct {
	Renderer    Renderer
	OutputDir   string
	Concurrency int // max in-flight renders, 0 = unbounded

	// Observe, when set, receives every page render's duration and
	// whether it succeeded.
	Observe func(d time.Duration, ok bool)
}

// OutputPath maps a site-relative page path to its output-relative file
// path: the root page becomes index.html, everything else drops the
// leading slash verbatim.
func OutputPath(pagePath string) string {
	if pagePath == "/" {
		return "index.html"
	}
	return strings.TrimPrefix(pagePath, "/")
}

// Emit renders all pages plus the synthetic 404 fallback. All pages are
// launched together; Emit returns once every page has either been written
// or recorded as failed. Filesystem errors are fatal and abort the run.
func (e *Emitter) Emit(ctx context.Context, opts *site.Options) (*Result, error) {
	pages := withNotFound(opts.Pages)

	// Identical on every page, so computed once for the whole build.
	userHead := site.RenderUserHeadTags(opts.Config.Head)

	res := &Result{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}

	for _, page := range pages {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rc := renderer.Context{
				URL:          page.Path,
				UserHeadTags: userHead,
				PageMeta:     site.RenderPageMeta(page.MetaEntries()),
				Title:        opts.Config.Title,
				Lang:         opts.Config.Lang,
			}

			t0 := time.Now()
			html, err := e.Renderer.RenderToString(ctx, rc)
			if e.Observe != nil {
				e.Observe(time.Since(t0), err == nil)
			}
			if err != nil {
				failure := PageFailure{Path: page.Path, Message: err.Error()}
				var re *renderer.RenderError
				if errors.As(err, &re) {
					failure.Stack = re.Stack
				}
				slog.Error("Page render failed", logfields.Page(page.Path), logfields.Error(err))
				if failure.Stack != "" {
					slog.Debug("Page render failure stack", logfields.Page(page.Path), slog.String("stack", failure.Stack))
				}
				mu.Lock()
				res.Failed = append(res.Failed, failure)
				mu.Unlock()
				// Recovered per page: nothing written, others continue.
				return nil
			}

			rel := OutputPath(page.Path)
			target := filepath.Join(e.OutputDir, rel)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create page dir for %s: %w", rel, err)
			}
			if err := os.WriteFile(target, []byte(html), 0o644); err != nil {
				return fmt.Errorf("write page %s: %w", rel, err)
			}

			slog.Debug("Page emitted", logfields.Page(page.Path), logfields.Path(rel))
			mu.Lock()
			res.Written = append(res.Written, rel)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(res.Written)
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Path < res.Failed[j].Path })
	return res, nil
}

func withNotFound(pages []site.Page) []site.Page {
	for _, p := range pages {
		if p.Path == NotFoundPath {
			return pages
		}
	}
	out := make([]site.Page, len(pages), len(pages)+1)
	copy(out, pages)
	return append(out, site.Page{Path: NotFoundPath})
}

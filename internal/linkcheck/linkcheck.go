// Package linkcheck verifies that internal anchors across the emitted site
// resolve to files the build wrote.
package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/winterholm/staticpress/internal/logfields"
	"github.com/winterholm/staticpress/internal/util/sets"
)

// Broken is one anchor whose target no emitted file satisfies.
type Broken struct {
	Source string // output-relative file the anchor was found in
	Target string // href as authored
}

// Checker scans emitted pages for <a href> anchors.
type Checker struct {
	OutputDir   string
	Concurrency int // max files parsed at once, 0 = unbounded
}

// Check parses every written page and resolves site-relative hrefs against
// the written set. The returned slice is sorted by source, then target.
// Unreadable files and cancellation produce an error; broken links do not.
func (c *Checker) Check(ctx context.Context, written []string) ([]Broken, error) {
	emitted := sets.New[string]()
	for _, rel := range written {
		emitted.Add(filepath.ToSlash(rel))
	}

	var mu sync.Mutex
	var broken []Broken

	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for _, rel := range written {
		if !strings.HasSuffix(rel, ".html") {
			continue
		}
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			hrefs, err := extractAnchors(filepath.Join(c.OutputDir, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("parse %s: %w", rel, err)
			}
			for _, href := range hrefs {
				target, ok := resolve(rel, href)
				if !ok {
					continue
				}
				if !emitted.Has(target) {
					slog.Warn("Broken internal link", logfields.Path(rel), logfields.URL(href))
					mu.Lock()
					broken = append(broken, Broken{Source: rel, Target: href})
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(broken, func(i, j int) bool {
		if broken[i].Source != broken[j].Source {
			return broken[i].Source < broken[j].Source
		}
		return broken[i].Target < broken[j].Target
	})
	return broken, nil
}

// extractAnchors returns the href of every <a> element in the file.
func extractAnchors(htmlPath string) ([]string, error) {
	f, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attrVal(n, "href"); href != "" {
				hrefs = append(hrefs, href)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hrefs, nil
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// resolve maps an authored href to the output-relative file it should hit.
// External links, non-http schemes and fragment-only references return
// false. Query and fragment are dropped; directory paths gain index.html.
func resolve(source, href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	base := url.URL{Path: "/" + filepath.ToSlash(source)}
	p := base.ResolveReference(&url.URL{Path: u.Path}).Path
	if strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	return strings.TrimPrefix(p, "/"), true
}

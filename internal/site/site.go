// Package site defines the immutable site model a build consumes and the
// head-tag string assembly applied to it.
package site

import (
	"fmt"
	"strings"

	"github.com/winterholm/staticpress/internal/util/sets"
)

// Attr is a single HTML attribute. Head tags carry attributes as an ordered
// slice so rendered output follows the authored order.
type Attr struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// HeadTag describes one element injected into every page's <head>.
type HeadTag struct {
	Tag       string `yaml:"tag"`
	Attrs     []Attr `yaml:"attrs,omitempty"`
	InnerHTML string `yaml:"inner,omitempty"`
}

// Config is the per-site configuration shared by every page of a build.
// Title and Lang are fixed for the whole build.
type Config struct {
	Title     string    `yaml:"title"`
	Lang      string    `yaml:"lang"`
	Head      []HeadTag `yaml:"head,omitempty"`
	PublicDir string    `yaml:"public_dir,omitempty"`
}

// Page is one renderable page. Path is site-relative and always starts
// with a slash.
type Page struct {
	Path        string         `yaml:"path"`
	Frontmatter map[string]any `yaml:"frontmatter,omitempty"`
}

// MetaEntries extracts the ordered per-page meta attribute maps from the
// frontmatter `meta` field. Pages without one return nil.
func (p Page) MetaEntries() []map[string]string {
	if p.Frontmatter == nil {
		return nil
	}
	raw, ok := p.Frontmatter["meta"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	entries := make([]map[string]string, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				entry[k] = s
			} else {
				entry[k] = fmt.Sprintf("%v", v)
			}
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

// AddMeta appends one name/content meta entry to the page frontmatter.
// Build stages use this to stamp derived metadata before rendering.
func (p *Page) AddMeta(name, content string) {
	if p.Frontmatter == nil {
		p.Frontmatter = make(map[string]any, 1)
	}
	list, _ := p.Frontmatter["meta"].([]any)
	p.Frontmatter["meta"] = append(list, map[string]any{"name": name, "content": content})
}

// Options is the complete input to one build: where to write, the shared
// site configuration, and every page to render. Prepared once; fixed by
// the time rendering starts.
type Options struct {
	OutputDir string
	Config    Config
	Pages     []Page
}

// Validate checks the model invariants: page paths are site-relative and
// distinct. Emitters rely on distinct paths to write without coordination.
func (o *Options) Validate() error {
	if o.OutputDir == "" {
		return fmt.Errorf("site: output directory not set")
	}
	seen := sets.New[string]()
	for _, p := range o.Pages {
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("site: page path %q must start with /", p.Path)
		}
		if seen.Has(p.Path) {
			return fmt.Errorf("site: duplicate page path %q", p.Path)
		}
		seen.Add(p.Path)
	}
	return nil
}

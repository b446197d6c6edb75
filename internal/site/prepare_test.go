package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleModel = `title: Example Docs
lang: en-US
head:
  - tag: meta
    attrs:
      - name: charset
        value: utf-8
  - tag: link
    attrs:
      - name: rel
        value: icon
      - name: href
        value: /favicon.ico
pages:
  - path: /
  - path: /guide/index.html
    frontmatter:
      meta:
        - name: description
          content: the guide
`

func writeModel(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ModelFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return dir
}

func TestFilePreparer(t *testing.T) {
	dir := writeModel(t, sampleModel)
	out := t.TempDir()
	p := &FilePreparer{Dir: dir, OutputDir: out, Title: "Fallback", Lang: "en"}

	opts, err := p.Prepare(context.Background())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if opts.OutputDir != out {
		t.Fatalf("output dir: got %s, want %s", opts.OutputDir, out)
	}
	if opts.Config.Title != "Example Docs" {
		t.Fatalf("title: got %s", opts.Config.Title)
	}
	if opts.Config.Lang != "en-US" {
		t.Fatalf("lang: got %s", opts.Config.Lang)
	}
	if len(opts.Config.Head) != 2 {
		t.Fatalf("head tags: got %d, want 2", len(opts.Config.Head))
	}
	if len(opts.Pages) != 2 {
		t.Fatalf("pages: got %d, want 2", len(opts.Pages))
	}
	if opts.Pages[1].MetaEntries()[0]["content"] != "the guide" {
		t.Fatalf("frontmatter meta not preserved: %v", opts.Pages[1].Frontmatter)
	}
}

func TestFilePreparerFallbacks(t *testing.T) {
	dir := writeModel(t, "pages:\n  - path: /\n")
	p := &FilePreparer{Dir: dir, OutputDir: t.TempDir(), Title: "Fallback", Lang: "en"}

	opts, err := p.Prepare(context.Background())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if opts.Config.Title != "Fallback" || opts.Config.Lang != "en" {
		t.Fatalf("fallbacks not applied: %+v", opts.Config)
	}
}

func TestFilePreparerMissingFile(t *testing.T) {
	p := &FilePreparer{Dir: t.TempDir(), OutputDir: t.TempDir()}
	if _, err := p.Prepare(context.Background()); err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestFilePreparerRejectsBadPaths(t *testing.T) {
	dir := writeModel(t, "pages:\n  - path: guide.html\n")
	p := &FilePreparer{Dir: dir, OutputDir: t.TempDir()}
	if _, err := p.Prepare(context.Background()); err == nil {
		t.Fatal("expected error for path without leading slash")
	}

	dir = writeModel(t, "pages:\n  - path: /a\n  - path: /a\n")
	p = &FilePreparer{Dir: dir, OutputDir: t.TempDir()}
	if _, err := p.Prepare(context.Background()); err == nil {
		t.Fatal("expected error for duplicate page path")
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := &Options{OutputDir: "", Pages: []Page{{Path: "/"}}}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

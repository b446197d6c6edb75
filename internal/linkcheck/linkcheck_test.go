package linkcheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writePage(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", `<html><body>
		<a href="/guide/intro.html">guide</a>
		<a href="missing.html">broken</a>
		<a href="https://example.com/x">external</a>
		<a href="mailto:a@b.example">mail</a>
		<a href="#top">anchor</a>
	</body></html>`)
	writePage(t, dir, "guide/intro.html", `<html><body>
		<a href="../index.html">home</a>
		<a href="extra.html">also broken</a>
	</body></html>`)

	c := &Checker{OutputDir: dir, Concurrency: 2}
	broken, err := c.Check(context.Background(), []string{"index.html", "guide/intro.html"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(broken) != 2 {
		t.Fatalf("expected 2 broken links, got %v", broken)
	}
	if broken[0].Source != "guide/intro.html" || broken[0].Target != "extra.html" {
		t.Fatalf("unexpected first entry: %+v", broken[0])
	}
	if broken[1].Source != "index.html" || broken[1].Target != "missing.html" {
		t.Fatalf("unexpected second entry: %+v", broken[1])
	}
}

func TestCheckDirectoryLinks(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", `<a href="/guide/">docs</a><a href="/other/">nope</a>`)
	writePage(t, dir, "guide/index.html", `<a href="/">home</a>`)

	c := &Checker{OutputDir: dir}
	broken, err := c.Check(context.Background(), []string{"index.html", "guide/index.html"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(broken) != 1 || broken[0].Target != "/other/" {
		t.Fatalf("expected only /other/ broken, got %v", broken)
	}
}

func TestCheckStripsQueryAndFragment(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", `<a href="/guide.html#setup">a</a><a href="/guide.html?v=2">b</a>`)
	writePage(t, dir, "guide.html", `ok`)

	c := &Checker{OutputDir: dir}
	broken, err := c.Check(context.Background(), []string{"index.html", "guide.html"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(broken) != 0 {
		t.Fatalf("expected no broken links, got %v", broken)
	}
}

func TestCheckMissingFile(t *testing.T) {
	c := &Checker{OutputDir: t.TempDir()}
	if _, err := c.Check(context.Background(), []string{"absent.html"}); err == nil {
		t.Fatal("expected error for unreadable page")
	}
}

func TestCheckEmpty(t *testing.T) {
	c := &Checker{OutputDir: t.TempDir()}
	broken, err := c.Check(context.Background(), nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(broken) != 0 {
		t.Fatalf("expected nothing, got %v", broken)
	}
}

func TestCheckCanceled(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "index.html", `<a href="/">home</a>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Checker{OutputDir: dir}
	if _, err := c.Check(ctx, []string{"index.html"}); err == nil {
		t.Fatal("expected context error")
	}
}

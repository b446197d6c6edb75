package emit

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/winterholm/staticpress/internal/renderer"
	"github.com/winterholm/staticpress/internal/site"
)

type fakeRenderer struct {
	mu     sync.Mutex
	calls  []renderer.Context
	failOn map[string]bool
}

func (f *fakeRenderer) RenderToString(ctx context.Context, rc renderer.Context) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rc)
	f.mu.Unlock()
	if f.failOn[rc.URL] {
		return "", &renderer.RenderError{Message: "component threw", Stack: "at render()"}
	}
	return "<html>" + rc.URL + "</html>", nil
}

func (f *fakeRenderer) call(url string) *renderer.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.calls {
		if f.calls[i].URL == url {
			return &f.calls[i]
		}
	}
	return nil
}

func model(pages ...string) *site.Options {
	ps := make([]site.Page, 0, len(pages))
	for _, p := range pages {
		ps = append(ps, site.Page{Path: p})
	}
	return &site.Options{
		Config: site.Config{
			Title: "Example",
			Lang:  "en",
			Head: []site.HeadTag{
				{Tag: "meta", Attrs: []site.Attr{{Name: "charset", Value: "utf-8"}}},
				{Tag: "script", InnerHTML: "1"},
			},
		},
		Pages: ps,
	}
}

func TestEmitAddsNotFoundFallback(t *testing.T) {
	out := t.TempDir()
	e := &Emitter{Renderer: &fakeRenderer{}, OutputDir: out}

	res, err := e.Emit(context.Background(), model("/", "/guide/index.html"))
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(res.Written) != 3 {
		t.Fatalf("written: got %v", res.Written)
	}
	for _, rel := range []string{"index.html", "guide/index.html", "404.html"} {
		if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
}

func TestEmitKeepsExistingNotFoundPage(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRenderer{}
	e := &Emitter{Renderer: fake, OutputDir: out}

	opts := model("/", "/404.html")
	res, err := e.Emit(context.Background(), opts)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(res.Written) != 2 {
		t.Fatalf("written: got %v", res.Written)
	}
	fake.mu.Lock()
	calls := len(fake.calls)
	fake.mu.Unlock()
	if calls != 2 {
		t.Fatalf("render calls: got %d, want 2", calls)
	}
}

func TestEmitOutputPathMapping(t *testing.T) {
	if got := OutputPath("/"); got != "index.html" {
		t.Fatalf("root: got %s", got)
	}
	if got := OutputPath("/foo/bar.html"); got != "foo/bar.html" {
		t.Fatalf("nested: got %s", got)
	}
}

func TestEmitRenderContext(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRenderer{}
	e := &Emitter{Renderer: fake, OutputDir: out}

	opts := model("/")
	opts.Pages[0].Frontmatter = map[string]any{
		"meta": []any{map[string]any{"name": "description", "content": "home"}},
	}
	if _, err := e.Emit(context.Background(), opts); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	rc := fake.call("/")
	if rc == nil {
		t.Fatal("no render call for /")
	}
	wantHead := "<meta charset=\"utf-8\">\n  <script>1</script>"
	if rc.UserHeadTags != wantHead {
		t.Fatalf("user head tags: got %q", rc.UserHeadTags)
	}
	if rc.PageMeta != `<meta content="home" name="description">` {
		t.Fatalf("page meta: got %q", rc.PageMeta)
	}
	if rc.Title != "Example" || rc.Lang != "en" {
		t.Fatalf("title/lang: %s / %s", rc.Title, rc.Lang)
	}

	// The synthetic 404 shares the build-wide head but has no page meta.
	notFound := fake.call("/404.html")
	if notFound == nil {
		t.Fatal("no render call for synthetic 404")
	}
	if notFound.UserHeadTags != wantHead || notFound.PageMeta != "" {
		t.Fatalf("synthetic 404 context: %+v", notFound)
	}
}

func TestEmitIsolatesRenderFailures(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRenderer{failOn: map[string]bool{"/two.html": true}}
	e := &Emitter{Renderer: fake, OutputDir: out}

	res, err := e.Emit(context.Background(), model("/one.html", "/two.html", "/three.html"))
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	for _, rel := range []string{"one.html", "three.html", "404.html"} {
		if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "two.html")); !os.IsNotExist(err) {
		t.Fatalf("failed page must not be written, stat err: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Path != "/two.html" {
		t.Fatalf("failures: %+v", res.Failed)
	}
	if res.Failed[0].Stack != "at render()" {
		t.Fatalf("failure stack: %q", res.Failed[0].Stack)
	}
}

func TestEmitBoundedConcurrency(t *testing.T) {
	out := t.TempDir()
	e := &Emitter{Renderer: &fakeRenderer{}, OutputDir: out, Concurrency: 1}

	res, err := e.Emit(context.Background(), model("/a.html", "/b.html", "/c.html"))
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(res.Written) != 4 {
		t.Fatalf("written: got %v", res.Written)
	}
}

func TestEmitCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := &Emitter{Renderer: &fakeRenderer{}, OutputDir: t.TempDir()}
	if _, err := e.Emit(ctx, model("/")); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestEmitObserveHook(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRenderer{failOn: map[string]bool{"/bad.html": true}}

	var mu sync.Mutex
	var ok, failed int
	e := &Emitter{
		Renderer:  fake,
		OutputDir: out,
		Observe: func(_ time.Duration, success bool) {
			mu.Lock()
			defer mu.Unlock()
			if success {
				ok++
			} else {
				failed++
			}
		},
	}

	if _, err := e.Emit(context.Background(), model("/good.html", "/bad.html")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ok != 2 { // good page plus synthetic 404
		t.Fatalf("observed successes: got %d, want 2", ok)
	}
	if failed != 1 {
		t.Fatalf("observed failures: got %d, want 1", failed)
	}
}

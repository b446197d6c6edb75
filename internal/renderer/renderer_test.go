package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/winterholm/staticpress/internal/manifest"
)

type fakePoster struct {
	endpoint  string
	lastBody  any
	responses map[string]string
	err       error
}

func (f *fakePoster) PostJSON(ctx context.Context, endpoint string, body, result any) error {
	f.endpoint = endpoint
	f.lastBody = body
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.responses[endpoint]), result)
}

func blobs() (manifest.Blob, manifest.Blob) {
	return manifest.Blob{Kind: manifest.KindServer, Data: json.RawMessage(`{"s":1}`)},
		manifest.Blob{Kind: manifest.KindClient, Data: json.RawMessage(`{"c":1}`)}
}

func TestNewPostsManifestsAndShell(t *testing.T) {
	fake := &fakePoster{responses: map[string]string{"/renderer": `{"ok": true}`}}
	server, client := blobs()

	ssr, err := New(context.Background(), fake, server, client, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ssr == nil {
		t.Fatal("nil SSR")
	}
	if fake.endpoint != "/renderer" {
		t.Fatalf("endpoint: %s", fake.endpoint)
	}

	req, ok := fake.lastBody.(constructRequest)
	if !ok {
		t.Fatalf("request type: %T", fake.lastBody)
	}
	if string(req.Server) != `{"s":1}` || string(req.Client) != `{"c":1}` {
		t.Fatalf("manifest blobs mangled: %s / %s", req.Server, req.Client)
	}
	if !strings.Contains(req.Template, "<!--ssr-outlet-->") {
		t.Fatal("packaged shell should carry the render outlet")
	}
}

func TestNewShellOverride(t *testing.T) {
	shellPath := filepath.Join(t.TempDir(), "shell.html")
	if err := os.WriteFile(shellPath, []byte("<html>custom</html>"), 0o644); err != nil {
		t.Fatalf("write shell: %v", err)
	}
	fake := &fakePoster{responses: map[string]string{"/renderer": `{"ok": true}`}}
	server, client := blobs()

	if _, err := New(context.Background(), fake, server, client, shellPath); err != nil {
		t.Fatalf("New: %v", err)
	}
	req := fake.lastBody.(constructRequest)
	if req.Template != "<html>custom</html>" {
		t.Fatalf("template override not applied: %q", req.Template)
	}

	server2, client2 := blobs()
	if _, err := New(context.Background(), fake, server2, client2, filepath.Join(t.TempDir(), "absent.html")); err == nil {
		t.Fatal("expected error for missing shell override")
	}
}

func TestNewSidecarFailure(t *testing.T) {
	fake := &fakePoster{responses: map[string]string{"/renderer": `{"ok": false, "error": {"message": "bad manifest"}}`}}
	server, client := blobs()
	if _, err := New(context.Background(), fake, server, client, ""); err == nil {
		t.Fatal("expected construction error")
	}
}

func TestRenderToString(t *testing.T) {
	fake := &fakePoster{responses: map[string]string{"/render": `{"html": "<html>ok</html>"}`}}
	ssr := &SSR{engine: fake}

	html, err := ssr.RenderToString(context.Background(), Context{URL: "/guide/"})
	if err != nil {
		t.Fatalf("RenderToString: %v", err)
	}
	if html != "<html>ok</html>" {
		t.Fatalf("html: %q", html)
	}
	if fake.endpoint != "/render" {
		t.Fatalf("endpoint: %s", fake.endpoint)
	}
}

func TestRenderToStringFailure(t *testing.T) {
	fake := &fakePoster{responses: map[string]string{
		"/render": `{"error": {"message": "component threw", "stack": "at render()"}}`,
	}}
	ssr := &SSR{engine: fake}

	_, err := ssr.RenderToString(context.Background(), Context{URL: "/broken/"})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %T", err)
	}
	if re.Message != "component threw" || re.Stack != "at render()" {
		t.Fatalf("detail: %+v", re)
	}
}

func TestRenderToStringTransportFailure(t *testing.T) {
	ssr := &SSR{engine: &fakePoster{err: errors.New("socket closed")}}
	_, err := ssr.RenderToString(context.Background(), Context{URL: "/"})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %T", err)
	}
}

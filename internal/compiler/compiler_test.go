package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/winterholm/staticpress/internal/site"
)

var _ Compiler = (*Sidecar)(nil)

// fakePoster records the request and plays back a canned JSON response.
type fakePoster struct {
	endpoint string
	body     any
	response string
	err      error
}

func (f *fakePoster) PostJSON(ctx context.Context, endpoint string, body, result any) error {
	f.endpoint = endpoint
	f.body = body
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), result)
}

func TestSidecarCompile(t *testing.T) {
	fake := &fakePoster{response: `{
		"targets": [
			{"name": "client", "assets": [{"name": "app.ab12cd34.js"}]},
			{"name": "server", "assets": [{"name": "app.ab12cd34.js"}, {"name": "styles.ef56gh78.js"}]}
		]
	}`}
	s := &Sidecar{Engine: fake}

	report, err := s.Compile(context.Background(),
		TargetConfig{Name: TargetClient, Payload: json.RawMessage(`{}`)},
		TargetConfig{Name: TargetServer, Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if fake.endpoint != "/compile" {
		t.Fatalf("endpoint: got %s", fake.endpoint)
	}
	if len(report.Targets) != 2 {
		t.Fatalf("targets: got %d, want 2", len(report.Targets))
	}
	server := report.Target(TargetServer)
	if server == nil || len(server.Assets) != 2 {
		t.Fatalf("server target malformed: %+v", server)
	}
	if report.Target("missing") != nil {
		t.Fatal("lookup of unknown target should return nil")
	}
}

func TestSidecarCompileTargetErrors(t *testing.T) {
	fake := &fakePoster{response: `{
		"targets": [
			{"name": "client", "assets": [], "errors": ["module not found: ./missing"]},
			{"name": "server", "assets": []}
		]
	}`}
	s := &Sidecar{Engine: fake}

	report, err := s.Compile(context.Background(), TargetConfig{Name: TargetClient}, TargetConfig{Name: TargetServer})
	if report != nil {
		t.Fatal("expected nil report on target errors")
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %T", err)
	}
	if len(ce.Errs) != 1 {
		t.Fatalf("errors: got %v", ce.Errs)
	}
}

func TestSidecarCompileTransportError(t *testing.T) {
	cause := errors.New("socket gone")
	s := &Sidecar{Engine: &fakePoster{err: cause}}

	_, err := s.Compile(context.Background(), TargetConfig{}, TargetConfig{})
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("CompileError should wrap the transport cause")
	}
}

func TestSidecarCompileHarnessError(t *testing.T) {
	fake := &fakePoster{response: `{"error": {"message": "harness exploded", "stack": "at main"}}`}
	s := &Sidecar{Engine: fake}

	_, err := s.Compile(context.Background(), TargetConfig{}, TargetConfig{})
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %T", err)
	}
	if len(ce.Errs) != 1 || ce.Errs[0] != "harness exploded" {
		t.Fatalf("errors: got %v", ce.Errs)
	}
}

func TestDefaultConfigSource(t *testing.T) {
	src := DefaultConfigSource("/src/site")
	opts := &site.Options{OutputDir: "/out"}

	client, server, err := src(opts, true)
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	if client.Name != TargetClient || server.Name != TargetServer {
		t.Fatalf("target names: %s / %s", client.Name, server.Name)
	}

	var p targetPayload
	if err := json.Unmarshal(server.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.Source != "/src/site" || p.OutputDir != "/out" || !p.Production || p.Target != TargetServer {
		t.Fatalf("payload: %+v", p)
	}
}

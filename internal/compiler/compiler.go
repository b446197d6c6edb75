// Package compiler drives the dual-target bundler invocation and
// normalizes its outcome into a serializable report.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/winterholm/staticpress/internal/logfields"
)

// Target names, in invocation order.
const (
	TargetClient = "client"
	TargetServer = "server"
)

// Asset is one emitted file, named relative to the output directory.
type Asset struct {
	Name string `json:"name"`
}

// TargetResult is the per-target outcome of one compile pass.
type TargetResult struct {
	Name   string   `json:"name"`
	Assets []Asset  `json:"assets"`
	Errors []string `json:"errors,omitempty"`
}

// Report is the serializable result of a dual-target compilation. Module
// level bundler detail is never captured.
type Report struct {
	Targets []TargetResult `json:"targets"`
}

// Target returns the named target result, or nil if absent.
func (r *Report) Target(name string) *TargetResult {
	for i := range r.Targets {
		if r.Targets[i].Name == name {
			return &r.Targets[i]
		}
	}
	return nil
}

// TargetConfig is an opaque bundler configuration. The pipeline forwards
// Payload without inspecting it; its schema belongs to the harness.
type TargetConfig struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// CompileError aggregates everything that went wrong during compilation.
// It is fatal: the build never proceeds past it.
type CompileError struct {
	Errs  []string
	Cause error
}

func (e *CompileError) Error() string {
	if len(e.Errs) > 0 {
		return fmt.Sprintf("compilation failed: %s", strings.Join(e.Errs, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("compilation failed: %v", e.Cause)
	}
	return "compilation failed"
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Compiler produces a compile report from the two target configurations.
type Compiler interface {
	Compile(ctx context.Context, client, server TargetConfig) (*Report, error)
}

// Poster is the sidecar transport surface the compiler needs.
type Poster interface {
	PostJSON(ctx context.Context, endpoint string, body, result any) error
}

// Sidecar compiles by delegating to the engine's /compile endpoint.
type Sidecar struct {
	Engine Poster
}

type compileRequest struct {
	Targets []TargetConfig `json:"targets"`
}

type compileResponse struct {
	Targets []TargetResult `json:"targets"`
	Error   *struct {
		Message string `json:"message"`
		Stack   string `json:"stack"`
	} `json:"error"`
}

// Compile runs both passes in one sidecar call. Every target-level error
// is logged individually before the aggregate error returns.
func (s *Sidecar) Compile(ctx context.Context, client, server TargetConfig) (*Report, error) {
	req := compileRequest{Targets: []TargetConfig{client, server}}

	var resp compileResponse
	if err := s.Engine.PostJSON(ctx, "/compile", req, &resp); err != nil {
		return nil, &CompileError{Cause: err}
	}

	if resp.Error != nil {
		slog.Error("Compilation failed", logfields.Error(fmt.Errorf("%s", resp.Error.Message)))
		if resp.Error.Stack != "" {
			slog.Debug("Compilation failure stack", slog.String("stack", resp.Error.Stack))
		}
		return nil, &CompileError{Errs: []string{resp.Error.Message}}
	}

	var errs []string
	for _, tr := range resp.Targets {
		for _, msg := range tr.Errors {
			slog.Error("Compilation error", logfields.Target(tr.Name), logfields.Error(fmt.Errorf("%s", msg)))
			errs = append(errs, fmt.Sprintf("%s: %s", tr.Name, msg))
		}
	}
	if len(errs) > 0 {
		return nil, &CompileError{Errs: errs}
	}

	for _, tr := range resp.Targets {
		slog.Debug("Target compiled", logfields.Target(tr.Name), logfields.Count(len(tr.Assets)))
	}
	return &Report{Targets: resp.Targets}, nil
}

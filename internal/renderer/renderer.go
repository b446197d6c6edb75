// Package renderer wraps the sidecar's server-side rendering surface: a
// renderer constructed once per build from the two manifests and an HTML
// shell, exposing a single render-context-to-HTML operation.
package renderer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/winterholm/staticpress/internal/manifest"
)

//go:embed shell.html
var defaultShell string

// Context is the exact, complete input to one page render. No other
// page-specific data reaches the renderer.
type Context struct {
	URL          string `json:"url"`
	UserHeadTags string `json:"userHeadTags"`
	PageMeta     string `json:"pageMeta"`
	Title        string `json:"title"`
	Lang         string `json:"lang"`
}

// RenderError is a per-page render failure. It never aborts a build; the
// emitter records it and moves on.
type RenderError struct {
	Message string
	Stack   string
}

func (e *RenderError) Error() string { return e.Message }

// Poster is the sidecar transport surface the renderer needs.
type Poster interface {
	PostJSON(ctx context.Context, endpoint string, body, result any) error
}

// SSR renders pages through the sidecar. Stateless per call; safe for
// concurrent use.
type SSR struct {
	engine Poster
}

type errDetail struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

type constructRequest struct {
	Server   json.RawMessage `json:"server"`
	Client   json.RawMessage `json:"client"`
	Template string          `json:"template"`
}

type constructResponse struct {
	OK    bool       `json:"ok"`
	Error *errDetail `json:"error"`
}

// New builds the sidecar renderer state from the two manifest blobs and
// the HTML shell. shellPath overrides the packaged shell when non-empty.
func New(ctx context.Context, eng Poster, server, client manifest.Blob, shellPath string) (*SSR, error) {
	shell := defaultShell
	if shellPath != "" {
		data, err := os.ReadFile(shellPath)
		if err != nil {
			return nil, fmt.Errorf("read shell template %s: %w", shellPath, err)
		}
		shell = string(data)
	}

	req := constructRequest{Server: server.Data, Client: client.Data, Template: shell}
	var resp constructResponse
	if err := eng.PostJSON(ctx, "/renderer", req, &resp); err != nil {
		return nil, fmt.Errorf("construct renderer: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("construct renderer: %s", resp.Error.Message)
	}
	if !resp.OK {
		return nil, fmt.Errorf("construct renderer: sidecar refused without detail")
	}
	return &SSR{engine: eng}, nil
}

type renderResponse struct {
	HTML  string     `json:"html"`
	Error *errDetail `json:"error"`
}

// RenderToString renders one page to its full HTML document. All failures
// surface as *RenderError so callers can treat them per page.
func (s *SSR) RenderToString(ctx context.Context, rc Context) (string, error) {
	var resp renderResponse
	if err := s.engine.PostJSON(ctx, "/render", rc, &resp); err != nil {
		return "", &RenderError{Message: err.Error()}
	}
	if resp.Error != nil {
		return "", &RenderError{Message: resp.Error.Message, Stack: resp.Error.Stack}
	}
	return resp.HTML, nil
}

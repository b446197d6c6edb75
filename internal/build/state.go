package build

import (
	"context"

	"github.com/winterholm/staticpress/internal/compiler"
	"github.com/winterholm/staticpress/internal/emit"
	"github.com/winterholm/staticpress/internal/manifest"
	"github.com/winterholm/staticpress/internal/site"
)

// Engine is the sidecar surface the pipeline drives. Satisfied by
// *engine.Engine; tests inject fakes.
type Engine interface {
	PostJSON(ctx context.Context, endpoint string, body, result any) error
	Close() error
}

// State carries mutable data across the stages of one build.
type State struct {
	BuildID string
	Options *site.Options
	Report  *Report
	Engine  Engine

	CompileReport  *compiler.Report
	ServerManifest manifest.Blob
	ClientManifest manifest.Blob
	EmitResult     *emit.Result
}

func newState(buildID string, opts *site.Options, report *Report) *State {
	return &State{
		BuildID: buildID,
		Options: opts,
		Report:  report,
	}
}

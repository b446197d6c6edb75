package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/winterholm/staticpress/internal/assets"
	"github.com/winterholm/staticpress/internal/compiler"
	"github.com/winterholm/staticpress/internal/config"
	"github.com/winterholm/staticpress/internal/emit"
	"github.com/winterholm/staticpress/internal/engine"
	"github.com/winterholm/staticpress/internal/events"
	"github.com/winterholm/staticpress/internal/gitmeta"
	"github.com/winterholm/staticpress/internal/history"
	"github.com/winterholm/staticpress/internal/linkcheck"
	"github.com/winterholm/staticpress/internal/logfields"
	"github.com/winterholm/staticpress/internal/manifest"
	"github.com/winterholm/staticpress/internal/metrics"
	"github.com/winterholm/staticpress/internal/renderer"
	"github.com/winterholm/staticpress/internal/site"
)

// linkCheckConcurrency bounds the files parsed at once during verification.
const linkCheckConcurrency = 8

// Pipeline executes complete site builds for one configuration.
type Pipeline struct {
	cfg          *config.Config
	preparer     site.Preparer
	startEngine  func(ctx context.Context) (Engine, error)
	configSource compiler.ConfigSource
	recorder     metrics.Recorder
	publisher    events.Publisher
	history      *history.Store
}

// New creates a Pipeline with the default collaborators for cfg.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		preparer: &site.FilePreparer{
			Dir:       cfg.Site.Source,
			OutputDir: cfg.Build.OutputDir,
			Title:     cfg.Site.Title,
			Lang:      cfg.Site.Lang,
		},
		startEngine: func(ctx context.Context) (Engine, error) {
			return engine.Start(ctx, engine.Options{
				Runtime: cfg.Render.Runtime,
				Harness: cfg.Render.Harness,
				Args:    cfg.Render.Args,
				Dir:     cfg.Site.Source,
			})
		},
		configSource: compiler.DefaultConfigSource(cfg.Site.Source),
		recorder:     metrics.NoopRecorder{},
		publisher:    events.NoopPublisher{},
	}
}

// WithRecorder attaches a metrics recorder (fluent helper).
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline { p.recorder = r; return p }

// WithPublisher attaches a build event publisher (fluent helper).
func (p *Pipeline) WithPublisher(pub events.Publisher) *Pipeline { p.publisher = pub; return p }

// WithHistory attaches a build history store (fluent helper).
func (p *Pipeline) WithHistory(h *history.Store) *Pipeline { p.history = h; return p }

// WithPreparer overrides the site model source (fluent helper).
func (p *Pipeline) WithPreparer(pr site.Preparer) *Pipeline { p.preparer = pr; return p }

// WithEngineStarter overrides sidecar startup (fluent helper).
func (p *Pipeline) WithEngineStarter(fn func(ctx context.Context) (Engine, error)) *Pipeline {
	p.startEngine = fn
	return p
}

// WithConfigSource overrides bundler target config production (fluent helper).
func (p *Pipeline) WithConfigSource(cs compiler.ConfigSource) *Pipeline {
	p.configSource = cs
	return p
}

// Run executes the full build. The returned Report is non-nil for every
// outcome so callers can always inspect what happened.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	buildID := uuid.NewString()
	report := newReport(buildID)
	slog.Info("Starting site build", logfields.BuildID(buildID), logfields.Output(p.cfg.Build.OutputDir))
	if err := p.publisher.BuildStarted(buildID); err != nil {
		slog.Warn("Failed to publish build event", logfields.Error(err))
	}

	opts, err := p.preparer.Prepare(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPrepare, err)
		report.Errors = append(report.Errors, err)
		return p.conclude(ctx, report, err)
	}
	report.Pages = len(opts.Pages)

	eng, err := p.startEngine(ctx)
	if err != nil {
		err = fmt.Errorf("start render engine: %w", err)
		report.Errors = append(report.Errors, err)
		return p.conclude(ctx, report, err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			slog.Warn("Engine shutdown failed", logfields.Error(cerr))
		}
	}()

	st := newState(buildID, opts, report)
	st.Engine = eng

	stages := []StageDef{
		{Name: StagePrepareOutput, Fn: p.stagePrepareOutput},
		{Name: StageStampGitMeta, Fn: p.stageStampGitMeta},
		{Name: StageCompile, Fn: p.stageCompile},
		{Name: StageLoadManifests, Fn: p.stageLoadManifests},
		{Name: StageStitchAssets, Fn: p.stageStitchAssets},
		{Name: StageCopyPublic, Fn: p.stageCopyPublic},
		{Name: StageRenderPages, Fn: p.stageRenderPages},
		{Name: StageVerifyLinks, Fn: p.stageVerifyLinks},
	}
	runErr := runStages(ctx, st, p.recorder, stages)
	if runErr == nil {
		if err := report.Persist(opts.OutputDir); err != nil {
			slog.Warn("Failed to persist build report", logfields.Error(err))
		}
	}
	return p.conclude(ctx, report, runErr)
}

// conclude derives the final outcome, emits metrics, events and history,
// and logs the closing line. runErr passes through unchanged.
func (p *Pipeline) conclude(ctx context.Context, report *Report, runErr error) (*Report, error) {
	report.deriveOutcome()
	report.finish()
	p.recorder.ObserveBuildDuration(report.Duration())
	p.recorder.IncBuildOutcome(string(report.Outcome))

	if err := p.publisher.BuildCompleted(events.Envelope{
		BuildID:    report.BuildID,
		Outcome:    string(report.Outcome),
		Pages:      report.Pages,
		Rendered:   report.Rendered,
		Failed:     len(report.FailedPages),
		DurationMS: report.Duration().Milliseconds(),
		OutputDir:  p.cfg.Build.OutputDir,
	}); err != nil {
		slog.Warn("Failed to publish build event", logfields.Error(err))
	}

	if p.history != nil {
		entry := history.Entry{
			BuildID:   report.BuildID,
			Started:   report.Start,
			Finished:  report.End,
			Outcome:   string(report.Outcome),
			Pages:     report.Pages,
			Rendered:  report.Rendered,
			Failed:    len(report.FailedPages),
			Duration:  report.Duration(),
			OutputDir: p.cfg.Build.OutputDir,
		}
		// History records canceled builds too, so the write must survive
		// the canceled build context.
		if err := p.history.Append(context.WithoutCancel(ctx), entry); err != nil {
			slog.Warn("Failed to record build history", logfields.Error(err))
		}
	}

	if runErr != nil {
		slog.Error("Site build failed",
			logfields.BuildID(report.BuildID), logfields.Outcome(string(report.Outcome)), logfields.Error(runErr))
		return report, runErr
	}
	slog.Info("Site build completed",
		logfields.BuildID(report.BuildID), logfields.Output(p.cfg.Build.OutputDir),
		logfields.Count(report.Rendered), logfields.Outcome(string(report.Outcome)))
	return report, nil
}

func (p *Pipeline) stagePrepareOutput(_ context.Context, st *State) error {
	out := st.Options.OutputDir
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("clean output dir %s: %w", out, err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", out, err)
	}
	return nil
}

func (p *Pipeline) stageStampGitMeta(ctx context.Context, st *State) error {
	if !p.cfg.Build.GitMeta {
		return nil
	}
	stamper, err := gitmeta.Open(p.cfg.Site.Source)
	if err != nil {
		return newWarnStageError(StageStampGitMeta, err)
	}
	n, err := stamper.Stamp(ctx, st.Options.Pages)
	if err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageStampGitMeta, err)
		}
		return newWarnStageError(StageStampGitMeta, err)
	}
	st.Report.GitStamped = n
	slog.Debug("Stamped pages with git metadata", logfields.Count(n))
	return nil
}

func (p *Pipeline) stageCompile(ctx context.Context, st *State) error {
	clientCfg, serverCfg, err := p.configSource(st.Options, p.cfg.Build.Production)
	if err != nil {
		return newFatalStageError(StageCompile, err)
	}
	comp := &compiler.Sidecar{Engine: st.Engine}
	report, err := comp.Compile(ctx, clientCfg, serverCfg)
	if err != nil {
		return newFatalStageError(StageCompile, fmt.Errorf("%w: %w", ErrCompile, err))
	}
	st.CompileReport = report
	return nil
}

func (p *Pipeline) stageLoadManifests(_ context.Context, st *State) error {
	server, client, err := manifest.Load(st.Options.OutputDir)
	if err != nil {
		return newFatalStageError(StageLoadManifests, fmt.Errorf("%w: %w", ErrManifest, err))
	}
	st.ServerManifest, st.ClientManifest = server, client
	return nil
}

func (p *Pipeline) stageStitchAssets(_ context.Context, st *State) error {
	if err := assets.Stitch(st.CompileReport, st.Options.OutputDir); err != nil {
		return newFatalStageError(StageStitchAssets, fmt.Errorf("%w: %w", ErrAssets, err))
	}
	return nil
}

func (p *Pipeline) stageCopyPublic(_ context.Context, st *State) error {
	dir := st.Options.Config.PublicDir
	if dir == "" {
		return nil
	}
	src := filepath.Join(p.cfg.Site.Source, dir)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return newWarnStageError(StageCopyPublic, fmt.Errorf("public dir %s does not exist", src))
	}
	if err := copyDir(src, st.Options.OutputDir); err != nil {
		return fmt.Errorf("copy public assets: %w", err)
	}
	return nil
}

func (p *Pipeline) stageRenderPages(ctx context.Context, st *State) error {
	ssr, err := renderer.New(ctx, st.Engine, st.ServerManifest, st.ClientManifest, p.cfg.Render.Template)
	if err != nil {
		return newFatalStageError(StageRenderPages, fmt.Errorf("%w: %w", ErrRender, err))
	}
	p.recorder.SetRenderConcurrency(p.cfg.Build.RenderConcurrency)
	em := &emit.Emitter{
		Renderer:    ssr,
		OutputDir:   st.Options.OutputDir,
		Concurrency: p.cfg.Build.RenderConcurrency,
		Observe:     p.recorder.ObservePageRender,
	}
	res, err := em.Emit(ctx, st.Options)
	if err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageRenderPages, err)
		}
		return newFatalStageError(StageRenderPages, fmt.Errorf("%w: %w", ErrRender, err))
	}
	st.EmitResult = res
	st.Report.Rendered = len(res.Written)
	st.Report.FailedPages = res.Failed
	p.recorder.AddPagesRendered(len(res.Written))
	p.recorder.AddPagesFailed(len(res.Failed))
	if n := len(res.Failed); n > 0 {
		return newWarnStageError(StageRenderPages, fmt.Errorf("%w: %d page(s) failed to render", ErrRender, n))
	}
	return nil
}

func (p *Pipeline) stageVerifyLinks(ctx context.Context, st *State) error {
	if !p.cfg.Build.VerifyLinks || st.EmitResult == nil {
		return nil
	}
	checker := &linkcheck.Checker{OutputDir: st.Options.OutputDir, Concurrency: linkCheckConcurrency}
	broken, err := checker.Check(ctx, st.EmitResult.Written)
	if err != nil {
		if ctx.Err() != nil {
			return newCanceledStageError(StageVerifyLinks, err)
		}
		return newWarnStageError(StageVerifyLinks, err)
	}
	st.Report.BrokenLinks = len(broken)
	if len(broken) > 0 {
		return newWarnStageError(StageVerifyLinks, fmt.Errorf("%d broken internal link(s)", len(broken)))
	}
	return nil
}

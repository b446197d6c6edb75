package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/winterholm/staticpress/internal/emit"
)

// Outcome is the typed enumeration of final build result states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// StageCount aggregates outcome counts for a stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// Report captures high-level metrics about one build run.
type Report struct {
	SchemaVersion   int // explicit schema version for forward-compatible consumers
	BuildID         string
	Pages           int // pages in the site model, excluding the synthetic 404
	Rendered        int // pages successfully rendered and written
	GitStamped      int // pages stamped with git metadata
	BrokenLinks     int // broken internal links found after emit
	Start           time.Time
	End             time.Time
	Errors          []error // fatal errors causing build abortion (at most one today)
	Warnings        []error // non-fatal issues recorded along the way
	FailedPages     []emit.PageFailure
	StageDurations  map[StageName]time.Duration
	StageErrorKinds map[StageName]StageErrorKind
	StageCounts     map[StageName]StageCount
	Outcome         Outcome
}

func newReport(buildID string) *Report {
	return &Report{
		SchemaVersion:   1,
		BuildID:         buildID,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageErrorKinds: make(map[StageName]StageErrorKind),
		StageCounts:     make(map[StageName]StageCount),
	}
}

func (r *Report) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
}

// Duration is the wall-clock span of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("pages=%d rendered=%d failed=%d duration=%s errors=%d warnings=%d stages=%d outcome=%s",
		r.Pages, r.Rendered, len(r.FailedPages), r.Duration().Truncate(time.Millisecond),
		len(r.Errors), len(r.Warnings), len(r.StageDurations), r.Outcome)
}

// deriveOutcome sets Outcome based on recorded errors and warnings.
func (r *Report) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
			// Cancellation can also surface before the stage loop starts,
			// wrapped in a plain error.
			if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Persist writes the report atomically into the provided root directory.
// It writes two files:
//
//	build-report.json  (machine readable)
//	build-report.txt   (human summary)
//
// Best effort; errors are returned for caller logging but do not change
// the build outcome.
func (r *Report) Persist(root string) error {
	if r.End.IsZero() {
		r.deriveOutcome()
		r.finish()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	jb, err := json.MarshalIndent(r.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(root, "build-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	summaryPath := filepath.Join(root, "build-report.txt")
	tmpTxt := summaryPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, summaryPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}

// FailedPage mirrors emit.PageFailure with JSON field names.
type FailedPage struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ReportSerializable mirrors Report with string errors and string-keyed
// maps for stable JSON output.
type ReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	BuildID         string                   `json:"build_id"`
	Pages           int                      `json:"pages"`
	Rendered        int                      `json:"rendered"`
	GitStamped      int                      `json:"git_stamped,omitempty"`
	BrokenLinks     int                      `json:"broken_links,omitempty"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	FailedPages     []FailedPage             `json:"failed_pages,omitempty"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount    `json:"stage_counts"`
	Outcome         string                   `json:"outcome"`
}

// serializable returns a copy with error values flattened to strings.
func (r *Report) serializable() *ReportSerializable {
	durations := make(map[string]time.Duration, len(r.StageDurations))
	for k, v := range r.StageDurations {
		durations[string(k)] = v
	}
	kinds := make(map[string]string, len(r.StageErrorKinds))
	for k, v := range r.StageErrorKinds {
		kinds[string(k)] = string(v)
	}
	counts := make(map[string]StageCount, len(r.StageCounts))
	for k, v := range r.StageCounts {
		counts[string(k)] = v
	}

	s := &ReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		BuildID:         r.BuildID,
		Pages:           r.Pages,
		Rendered:        r.Rendered,
		GitStamped:      r.GitStamped,
		BrokenLinks:     r.BrokenLinks,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  durations,
		StageErrorKinds: kinds,
		StageCounts:     counts,
		Outcome:         string(r.Outcome),
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	for _, f := range r.FailedPages {
		s.FailedPages = append(s.FailedPages, FailedPage{Path: f.Path, Message: f.Message, Stack: f.Stack})
	}
	return s
}

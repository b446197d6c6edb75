package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/winterholm/staticpress/internal/logfields"
	"github.com/winterholm/staticpress/internal/metrics"
)

// runStages executes stages in order, recording timing and classification,
// and stops on the first fatal or canceled error.
func runStages(ctx context.Context, st *State, recorder metrics.Recorder, stages []StageDef) error {
	for _, sd := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(sd.Name, ctx.Err())
			st.Report.StageErrorKinds[sd.Name] = se.Kind
			st.Report.recordStageResult(sd.Name, metrics.ResultCanceled, recorder)
			st.Report.Errors = append(st.Report.Errors, se)
			return se
		default:
		}

		t0 := time.Now()
		err := sd.Fn(ctx, st)
		dur := time.Since(t0)
		st.Report.StageDurations[sd.Name] = dur
		recorder.ObserveStageDuration(string(sd.Name), dur)

		if err == nil {
			st.Report.recordStageResult(sd.Name, metrics.ResultSuccess, recorder)
			slog.Debug("Stage completed", logfields.BuildID(st.BuildID),
				logfields.Stage(string(sd.Name)), logfields.DurationMS(float64(dur.Milliseconds())))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Wrap unknown errors as fatal by default.
			se = newFatalStageError(sd.Name, err)
		}
		st.Report.StageErrorKinds[sd.Name] = se.Kind
		switch se.Kind {
		case StageErrorWarning:
			st.Report.Warnings = append(st.Report.Warnings, se)
			st.Report.recordStageResult(sd.Name, metrics.ResultWarning, recorder)
			slog.Warn("Stage completed with warnings", logfields.BuildID(st.BuildID),
				logfields.Stage(string(sd.Name)), logfields.Error(se.Err))
		case StageErrorCanceled:
			st.Report.Errors = append(st.Report.Errors, se)
			st.Report.recordStageResult(sd.Name, metrics.ResultCanceled, recorder)
			return se
		default:
			st.Report.Errors = append(st.Report.Errors, se)
			st.Report.recordStageResult(sd.Name, metrics.ResultFatal, recorder)
			return se
		}
	}
	return nil
}

// recordStageResult updates the per-stage counters and forwards the result
// to the metrics recorder.
func (r *Report) recordStageResult(stage StageName, res metrics.ResultLabel, recorder metrics.Recorder) {
	sc := r.StageCounts[stage]
	switch res {
	case metrics.ResultSuccess:
		sc.Success++
	case metrics.ResultWarning:
		sc.Warning++
	case metrics.ResultFatal:
		sc.Fatal++
	case metrics.ResultCanceled:
		sc.Canceled++
	}
	r.StageCounts[stage] = sc
	recorder.IncStageResult(string(stage), res)
}

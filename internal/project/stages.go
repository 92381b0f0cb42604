package project

import (
	"context"
	stderrors "errors"
	"time"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/logfields"
	"git.home.luguber.info/inful/rocket/internal/metrics"
)

// stageFn is a discrete unit of work in the site build. Returning an
// error with SeverityWarning records it and continues; anything else
// aborts the pipeline.
type stageFn func(ctx context.Context, bs *buildState) error

type stageDef struct {
	name string
	fn   stageFn
}

// runStages executes stages in order, recording timing and stopping on
// the first fatal error.
func runStages(ctx context.Context, bs *buildState, stages []stageDef) error {
	rec := bs.builder.recorder
	log := bs.builder.logger

	for _, st := range stages {
		select {
		case <-ctx.Done():
			bs.report.Canceled = true
			rec.IncStageResult(st.name, metrics.ResultFatal)
			return rerrors.Wrap(ctx.Err(), rerrors.CategoryInternal, rerrors.SeverityFatal, "build canceled").
				WithContext("stage", st.name)
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		dur := time.Since(t0)
		bs.report.StageDurations[st.name] = dur
		rec.ObserveStageDuration(st.name, dur)

		if err == nil {
			rec.IncStageResult(st.name, metrics.ResultSuccess)
			log.Debug("stage complete", logfields.Stage(st.name), logfields.DurationMS(float64(dur.Milliseconds())))
			continue
		}

		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			bs.report.Canceled = true
			rec.IncStageResult(st.name, metrics.ResultFatal)
			return rerrors.Wrap(err, rerrors.CategoryInternal, rerrors.SeverityFatal, "build canceled").
				WithContext("stage", st.name)
		}

		var re *rerrors.RocketError
		if stderrors.As(err, &re) && re.Severity == rerrors.SeverityWarning {
			bs.report.addWarning(err.Error())
			rec.IncStageResult(st.name, metrics.ResultWarning)
			log.Warn("stage finished with warning", logfields.Stage(st.name), logfields.Error(err))
			continue
		}

		bs.report.addError(err.Error())
		rec.IncStageResult(st.name, metrics.ResultFatal)
		log.Error("stage failed", logfields.Stage(st.name), logfields.Error(err))
		return rerrors.BuildFailed(st.name, err)
	}
	return nil
}

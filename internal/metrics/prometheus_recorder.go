package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	buildDuration  prom.Histogram
	stageResults   *prom.CounterVec
	buildOutcome   *prom.CounterVec
	pageResults    *prom.CounterVec
	directiveEvals *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the rocket metrics on the
// given registry. Registering the same recorder twice on one registry
// panics, as usual for Prometheus collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "rocket",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "rocket",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "rocket",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "rocket",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		pageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "rocket",
			Name:      "page_results_total",
			Help:      "Per-page build results",
		}, []string{"result"}),
		directiveEvals: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "rocket",
			Name:      "directive_evaluations_total",
			Help:      "Directive invocations by directive name",
		}, []string{"directive"}),
	}

	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults,
		pr.buildOutcome, pr.pageResults, pr.directiveEvals)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncPageResult(success bool) {
	if p == nil || p.pageResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.pageResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncDirectiveEval(directive string) {
	if p == nil || p.directiveEvals == nil {
		return
	}
	p.directiveEvals.WithLabelValues(directive).Inc()
}

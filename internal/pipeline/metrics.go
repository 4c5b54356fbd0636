package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/textaudit/layered-audit/internal/types"
)

// Outcome labels.
const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeStale      = "stale"
	outcomeSuppressed = "suppressed"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	stageRuns        *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	revisions        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "stage_runs_total",
			Help:      "Analysis run triggers per stage, by outcome.",
		}, []string{"stage", "outcome"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "audit",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of context fetch plus analysis per stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		revisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "revision_submissions_total",
			Help:      "Revision submissions by mode and outcome.",
		}, []string{"mode", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.stageRuns, m.analysisDuration, m.revisions)
	}
	return m
}

// ObserveRun records the outcome of one run trigger.
func (m *Metrics) ObserveRun(stage types.StageID, outcome string) {
	if m == nil {
		return
	}
	m.stageRuns.WithLabelValues(string(stage), outcome).Inc()
}

// ObserveDuration records how long a run spent in collaborator calls.
func (m *Metrics) ObserveDuration(stage types.StageID, d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveRevision records one revision submission.
func (m *Metrics) ObserveRevision(mode types.RevisionMode, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.revisions.WithLabelValues(string(mode), outcome).Inc()
}

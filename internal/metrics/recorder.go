// Package metrics exposes Prometheus instrumentation for symmetry searches,
// symmetrization and prior updates.
//
// A Recorder registers its collectors on the registerer it is given, so
// several recorders can coexist (one per test, one per process). All methods
// are safe to call on a nil *Recorder, which disables instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helixsym"

// Recorder holds the collectors used by the processing packages
type Recorder struct {
	candidatesEvaluated  prometheus.Counter
	candidatesDegenerate prometheus.Counter
	searchIterations     prometheus.Histogram
	searchDuration       prometheus.Histogram
	symmetrizedVoxels    prometheus.Counter
	tubesProcessed       prometheus.Counter
	rowsProcessed        prometheus.Counter
	wrongPolarity        prometheus.Counter
	outliers             prometheus.Counter
}

// NewRecorder creates and registers the collectors
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		candidatesEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_evaluated_total",
			Help:      "Number of (rise, twist) candidates scored.",
		}),
		candidatesDegenerate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_degenerate_total",
			Help:      "Number of candidates rejected because the ROI was degenerate.",
		}),
		searchIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "refinement_iterations",
			Help:      "Local refinement iterations per search.",
			Buckets:   prometheus.LinearBuckets(0, 5, 12),
		}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall time of one local symmetry search.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		symmetrizedVoxels: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "symmetrize",
			Name:      "voxels_total",
			Help:      "Number of voxels replaced by their symmetry average.",
		}),
		tubesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "priors",
			Name:      "tubes_total",
			Help:      "Number of helical tubes whose priors were updated.",
		}),
		rowsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "priors",
			Name:      "rows_total",
			Help:      "Number of particle rows whose priors were updated.",
		}),
		wrongPolarity: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "priors",
			Name:      "wrong_polarity_total",
			Help:      "Number of rows flagged with opposite polarity.",
		}),
		outliers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "priors",
			Name:      "outliers_total",
			Help:      "Number of rows excluded from neighbour smoothing.",
		}),
	}
}

// ObserveCandidate counts one scored candidate
func (r *Recorder) ObserveCandidate(degenerate bool) {
	if r == nil {
		return
	}
	r.candidatesEvaluated.Inc()
	if degenerate {
		r.candidatesDegenerate.Inc()
	}
}

// ObserveSearch records the outcome of one local search
func (r *Recorder) ObserveSearch(iterations int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.searchIterations.Observe(float64(iterations))
	r.searchDuration.Observe(elapsed.Seconds())
}

// ObserveSymmetrize counts voxels replaced by a symmetrization pass
func (r *Recorder) ObserveSymmetrize(voxels int) {
	if r == nil {
		return
	}
	r.symmetrizedVoxels.Add(float64(voxels))
}

// ObservePriors records one prior-update pass
func (r *Recorder) ObservePriors(tubes, rows, wrongPolarity, outliers int) {
	if r == nil {
		return
	}
	r.tubesProcessed.Add(float64(tubes))
	r.rowsProcessed.Add(float64(rows))
	r.wrongPolarity.Add(float64(wrongPolarity))
	r.outliers.Add(float64(outliers))
}

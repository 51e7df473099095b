package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"card_pricer/internal/domain"
	"card_pricer/internal/domain/entity"
)

const namespace = "card_pricer"

// Recorder собирает метрики оценщика, планировщика и пула браузеров.
type Recorder struct {
	fetchDuration     *prometheus.HistogramVec
	listings          *prometheus.CounterVec
	results           *prometheus.CounterVec
	estimatedValue    prometheus.Histogram
	tasks             *prometheus.CounterVec
	taskDuration      prometheus.Histogram
	activeTasks       prometheus.Gauge
	sessionsInUse     prometheus.Gauge
	sessionsRecreated prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Marketplace search duration by stage and outcome.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"stage", "outcome"}),
		listings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Listings seen by the normalizer by stage and disposition.",
		}, []string{"stage", "disposition"}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Valuations by confidence tier.",
		}, []string{"confidence"}),
		estimatedValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimated_value",
			Help:      "Distribution of estimated card values.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Finished card tasks by status.",
		}, []string{"status"}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock time of one card task.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		activeTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Card tasks currently running.",
		}),
		sessionsInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browser_sessions_in_use",
			Help:      "Browser sessions leased to tasks.",
		}),
		sessionsRecreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "browser_sessions_recreated_total",
			Help:      "Browser sessions discarded after a failed health check.",
		}),
	}
}

func (r *Recorder) ObserveFetch(stage entity.Stage, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fetchDuration.WithLabelValues(stage.String(), outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveDiagnostics(stage entity.Stage, diag entity.Diagnostics) {
	s := stage.String()
	for disposition, n := range map[string]int{
		"accepted":        diag.Accepted,
		"malformed":       diag.Malformed,
		"bad_price":       diag.BadPrice,
		"bad_date":        diag.BadDate,
		"grade_mismatch":  diag.GradeMismatch,
		"serial_mismatch": diag.SerialMismatch,
		"other_card":      diag.OtherCard,
		"lot":             diag.Lots,
	} {
		if n > 0 {
			r.listings.WithLabelValues(s, disposition).Add(float64(n))
		}
	}
}

func (r *Recorder) ObserveResult(result entity.FairValueResult) {
	r.results.WithLabelValues(string(result.Confidence)).Inc()
	if result.Found() {
		r.estimatedValue.Observe(result.EstimatedValue)
	}
}

func (r *Recorder) ObserveOutcome(o entity.Outcome) {
	status := "ok"
	if o.Err != nil {
		status = "error"
		if code, ok := domain.GetCode(o.Err); ok {
			status = string(code)
		}
	}

	r.tasks.WithLabelValues(status).Inc()
	if o.Attempts > 0 {
		r.taskDuration.Observe(o.Duration.Seconds())
	}
}

func (r *Recorder) SetActiveTasks(n int) {
	r.activeTasks.Set(float64(n))
}

func (r *Recorder) SetSessionsInUse(n int) {
	r.sessionsInUse.Set(float64(n))
}

func (r *Recorder) IncSessionRecreated() {
	r.sessionsRecreated.Inc()
}

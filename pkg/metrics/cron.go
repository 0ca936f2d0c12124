package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CronResultOK      = "ok"
	CronResultError   = "error"
	CronResultSkipped = "skipped"
)

// CronJobMetrics tracks scheduled job runs. A nil value is a no-op.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bistro_cron_job_runs_total",
			Help: "Cron job runs by outcome (ok, error, skipped).",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "bistro_cron_job_duration_seconds",
			Help: "Cron job run time.",
			// retention over a large outbox can take minutes
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bistro_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Observe records a finished run. A nil err counts as ok and bumps the
// last-success gauge.
func (c *CronJobMetrics) Observe(job string, took time.Duration, err error) {
	if c == nil {
		return
	}
	job = label(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, CronResultError).Inc()
		return
	}
	c.runs.WithLabelValues(job, CronResultOK).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// Failed counts a run that never started, e.g. the lock backend was down.
func (c *CronJobMetrics) Failed(job string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(label(job), CronResultError).Inc()
}

// Skipped counts a run held off because another replica owns the lock.
func (c *CronJobMetrics) Skipped(job string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(label(job), CronResultSkipped).Inc()
}

// label keeps empty values out of the label set.
func label(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "low-stock-digest"

	m.Observe(job, 250*time.Millisecond, nil)
	m.Observe(job, time.Second, errors.New("sendgrid down"))
	m.Skipped(job)
	m.Failed("")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultError)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", CronResultError)))
	require.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)), 0.0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	hist := findHistogram(mfs, "bistro_cron_job_duration_seconds", job)
	require.NotNil(t, hist)
	require.EqualValues(t, 2, hist.GetSampleCount())
	require.InDelta(t, 1.25, hist.GetSampleSum(), 0.0001)
}

func TestCronJobMetricsNilIsNoop(t *testing.T) {
	var m *CronJobMetrics
	require.Nil(t, NewCronJobMetrics(nil))
	require.NotPanics(t, func() {
		m.Observe("x", time.Second, nil)
		m.Failed("x")
		m.Skipped("x")
	})
}

func findHistogram(mfs []*dto.MetricFamily, name, job string) *dto.Histogram {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetHistogram()
				}
			}
		}
	}
	return nil
}

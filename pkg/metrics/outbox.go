package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher's delivery outcomes per event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dlq       *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_outbox_published_total",
		Help: "Outbox events delivered to Kafka.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_outbox_publish_failures_total",
		Help: "Retryable outbox publish failures.",
	}, []string{"event_type"})
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bistro_outbox_dlq_total",
		Help: "Outbox events parked in the dead letter table.",
	}, []string{"event_type", "reason"})
	reg.MustRegister(published, failed, dlq)
	return &OutboxMetrics{published: published, failed: failed, dlq: dlq}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(label(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(label(eventType)).Inc()
}

func (o *OutboxMetrics) IncDLQ(eventType, reason string) {
	if o == nil || o.dlq == nil {
		return
	}
	o.dlq.WithLabelValues(label(eventType), label(reason)).Inc()
}

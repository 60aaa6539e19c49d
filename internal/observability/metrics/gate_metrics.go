package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics tracks admission decisions and webhook processing outcomes.
type GateMetrics struct {
	admissions     *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	periodResets   prometheus.Counter
	notesGenerated *prometheus.CounterVec
}

var (
	gateMetricsOnce sync.Once
	gateMetrics     *GateMetrics
)

func GateWithConfig(cfg Config) *GateMetrics {
	gateMetricsOnce.Do(func() {
		gateMetrics = newGateMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return gateMetrics
}

func newGateMetrics(registerer prometheus.Registerer, cfg Config) *GateMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "aidentalnotes"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	admissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "aidentalnotes_quota_admissions_total",
			Help:        "Quota gate decisions by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // admitted | quota_exceeded | subscription_inactive | error
	)

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "aidentalnotes_webhook_events_total",
			Help:        "Webhook deliveries by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // applied | duplicate | rejected | failed
	)

	periodResets := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "aidentalnotes_period_resets_total",
			Help:        "Billing periods rolled forward by the maintenance worker.",
			ConstLabels: constLabels,
		},
	)

	notesGenerated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "aidentalnotes_notes_generated_total",
			Help:        "Note generation attempts by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // success | transcription_failed | generation_failed
	)

	registerer.MustRegister(
		admissions,
		webhookEvents,
		periodResets,
		notesGenerated,
	)

	return &GateMetrics{
		admissions:     admissions,
		webhookEvents:  webhookEvents,
		periodResets:   periodResets,
		notesGenerated: notesGenerated,
	}
}

func (m *GateMetrics) IncAdmission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

func (m *GateMetrics) IncWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *GateMetrics) AddPeriodResets(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.periodResets.Add(float64(count))
}

func (m *GateMetrics) IncNoteGenerated(outcome string) {
	if m == nil {
		return
	}
	m.notesGenerated.WithLabelValues(outcome).Inc()
}

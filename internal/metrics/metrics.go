package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the intake pipeline.
type PipelineMetrics struct {
	turnsTotal       *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	geocodeTotal     *prometheus.CounterVec
	severityTotal    *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Chat turns handled, by outcome",
		}, []string{"outcome"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Report submissions to the ingestion backend",
		}, []string{"status"}),
		geocodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Subsystem: "intake",
			Name:      "geocode_total",
			Help:      "Location enrichment results",
		}, []string{"result"}),
		severityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Subsystem: "intake",
			Name:      "severity_total",
			Help:      "Severity weights assigned to submitted reports",
		}, []string{"weight"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "radar",
			Subsystem: "intake",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of outbound calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.submissionsTotal, m.geocodeTotal, m.severityTotal, m.upstreamLatency)
	return m
}

func (m *PipelineMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) ObserveGeocode(found bool) {
	if m == nil {
		return
	}
	result := "no_match"
	if found {
		result = "match"
	}
	m.geocodeTotal.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) ObserveSeverity(weight int) {
	if m == nil {
		return
	}
	label := "baseline"
	if weight == 9 {
		label = "heinous"
	}
	m.severityTotal.WithLabelValues(label).Inc()
}

func (m *PipelineMetrics) ObserveUpstreamLatency(service string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(service).Observe(seconds)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the conversational flows.
type ChatMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	faqMatchTotal   *prometheus.CounterVec
	assignmentTotal *prometheus.CounterVec
	lookupTotal     *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisrod",
			Subsystem: "chat",
			Name:      "inbound_total",
			Help:      "Total inbound messages by platform and routing outcome",
		}, []string{"platform", "route"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisrod",
			Subsystem: "chat",
			Name:      "outbound_total",
			Help:      "Total outbound provider sends",
		}, []string{"platform", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wisrod",
			Subsystem: "chat",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform"}),
		faqMatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisrod",
			Subsystem: "faq",
			Name:      "match_total",
			Help:      "FAQ similarity lookups by result",
		}, []string{"result"}),
		assignmentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisrod",
			Subsystem: "agents",
			Name:      "assignment_total",
			Help:      "Agent assignment attempts by outcome",
		}, []string{"outcome"}),
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisrod",
			Subsystem: "accounts",
			Name:      "lookup_total",
			Help:      "Core-banking account lookups by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency, m.faqMatchTotal, m.assignmentTotal, m.lookupTotal)
	return m
}

func (m *ChatMetrics) ObserveInbound(platform, route string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(platform, route).Inc()
}

func (m *ChatMetrics) ObserveOutbound(platform, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(platform, status).Inc()
}

func (m *ChatMetrics) ObserveWebhookLatency(platform string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(platform).Observe(seconds)
}

func (m *ChatMetrics) ObserveFAQMatch(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.faqMatchTotal.WithLabelValues(result).Inc()
}

func (m *ChatMetrics) ObserveAssignment(outcome string) {
	if m == nil {
		return
	}
	m.assignmentTotal.WithLabelValues(outcome).Inc()
}

func (m *ChatMetrics) ObserveAccountLookup(status string) {
	if m == nil {
		return
	}
	m.lookupTotal.WithLabelValues(status).Inc()
}

// Package metrics exposes the Prometheus instruments for the chat platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics holds the platform's counters and histograms. All record
// methods are safe on a nil receiver so wiring stays optional in tests.
type ChatMetrics struct {
	inboundMessages   *prometheus.CounterVec
	botReplies        prometheus.Counter
	intentsDetected   *prometheus.CounterVec
	autoResponseHits  prometheus.Counter
	flowsStarted      *prometheus.CounterVec
	flowsFinished     *prometheus.CounterVec
	handoffs          prometheus.Counter
	assignments       prometheus.Counter
	resolutions       prometheus.Counter
	deliveryFailures  prometheus.Counter
	processingSeconds prometheus.Histogram
}

// NewChatMetrics registers the platform metrics on the given registerer.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &ChatMetrics{
		inboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_inbound_messages_total",
			Help: "Inbound customer messages by conversation status at arrival.",
		}, []string{"status"}),
		botReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_bot_replies_total",
			Help: "Messages the bot sent to customers.",
		}),
		intentsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_intents_detected_total",
			Help: "Classified intents for free-text messages.",
		}, []string{"intent"}),
		autoResponseHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_auto_response_hits_total",
			Help: "Messages answered by an auto-response rule.",
		}),
		flowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_flows_started_total",
			Help: "Dialogue flows started by type.",
		}, []string{"flow"}),
		flowsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_flows_finished_total",
			Help: "Dialogue flows finished by type and outcome.",
		}, []string{"flow", "outcome"}),
		handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_handoffs_total",
			Help: "Conversations moved to the waiting-for-agent queue.",
		}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_assignments_total",
			Help: "Conversations taken by an agent.",
		}),
		resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_resolutions_total",
			Help: "Conversations closed.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Outbound sends rejected by the gateway.",
		}),
		processingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_message_processing_seconds",
			Help:    "Time to process one inbound message end to end.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	factory(m.inboundMessages)
	factory(m.botReplies)
	factory(m.intentsDetected)
	factory(m.autoResponseHits)
	factory(m.flowsStarted)
	factory(m.flowsFinished)
	factory(m.handoffs)
	factory(m.assignments)
	factory(m.resolutions)
	factory(m.deliveryFailures)
	factory(m.processingSeconds)

	return m
}

func (m *ChatMetrics) RecordInbound(status string) {
	if m == nil {
		return
	}
	m.inboundMessages.WithLabelValues(status).Inc()
}

func (m *ChatMetrics) RecordBotReply() {
	if m == nil {
		return
	}
	m.botReplies.Inc()
}

func (m *ChatMetrics) RecordIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsDetected.WithLabelValues(intent).Inc()
}

func (m *ChatMetrics) RecordAutoResponseHit() {
	if m == nil {
		return
	}
	m.autoResponseHits.Inc()
}

func (m *ChatMetrics) RecordFlowStarted(flowType string) {
	if m == nil {
		return
	}
	m.flowsStarted.WithLabelValues(flowType).Inc()
}

func (m *ChatMetrics) RecordFlowFinished(flowType, outcome string) {
	if m == nil {
		return
	}
	m.flowsFinished.WithLabelValues(flowType, outcome).Inc()
}

func (m *ChatMetrics) RecordHandoff() {
	if m == nil {
		return
	}
	m.handoffs.Inc()
}

func (m *ChatMetrics) RecordAssignment() {
	if m == nil {
		return
	}
	m.assignments.Inc()
}

func (m *ChatMetrics) RecordResolution() {
	if m == nil {
		return
	}
	m.resolutions.Inc()
}

func (m *ChatMetrics) RecordDeliveryFailure() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *ChatMetrics) ObserveProcessing(seconds float64) {
	if m == nil {
		return
	}
	m.processingSeconds.Observe(seconds)
}

// Package metrics exposes Prometheus counters for the assistant core.
// All increment helpers are nil-safe so components can run unmetered.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the assistant's counters.
type Metrics struct {
	Turns                 prometheus.Counter
	TurnFailures          prometheus.Counter
	ToolInvocations       *prometheus.CounterVec
	ToolFailures          *prometheus.CounterVec
	SchemaRejections      prometheus.Counter
	EstimatorFallbacks    prometheus.Counter
	ConfirmationsProposed prometheus.Counter
	ConfirmationsApproved prometheus.Counter
}

// New registers the counters with reg and returns the set.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_turns_total",
			Help: "User turns processed.",
		}),
		TurnFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_turn_failures_total",
			Help: "User turns that ended in a fatal failure.",
		}),
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "foreman_tool_invocations_total",
			Help: "Tool executions by tool name.",
		}, []string{"tool"}),
		ToolFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "foreman_tool_failures_total",
			Help: "Tool executions that returned an error, by tool name.",
		}, []string{"tool"}),
		SchemaRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_schema_rejections_total",
			Help: "Tool inputs rejected by schema validation.",
		}),
		EstimatorFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_estimator_fallbacks_total",
			Help: "Payment estimates served by the closed-form fallback.",
		}),
		ConfirmationsProposed: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_confirmations_proposed_total",
			Help: "Destructive or financial actions proposed for confirmation.",
		}),
		ConfirmationsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "foreman_confirmations_approved_total",
			Help: "Proposed actions the user approved.",
		}),
	}
}

// IncTurn counts one processed turn.
func (m *Metrics) IncTurn() {
	if m != nil {
		m.Turns.Inc()
	}
}

// IncTurnFailure counts one fatal turn failure.
func (m *Metrics) IncTurnFailure() {
	if m != nil {
		m.TurnFailures.Inc()
	}
}

// IncTool counts one tool execution.
func (m *Metrics) IncTool(name string) {
	if m != nil {
		m.ToolInvocations.WithLabelValues(name).Inc()
	}
}

// IncToolFailure counts one failed tool execution.
func (m *Metrics) IncToolFailure(name string) {
	if m != nil {
		m.ToolFailures.WithLabelValues(name).Inc()
	}
}

// IncSchemaRejection counts one schema-validation rejection.
func (m *Metrics) IncSchemaRejection() {
	if m != nil {
		m.SchemaRejections.Inc()
	}
}

// IncEstimatorFallback counts one fallback estimate.
func (m *Metrics) IncEstimatorFallback() {
	if m != nil {
		m.EstimatorFallbacks.Inc()
	}
}

// IncConfirmationProposed counts one confirmation proposal.
func (m *Metrics) IncConfirmationProposed() {
	if m != nil {
		m.ConfirmationsProposed.Inc()
	}
}

// IncConfirmationApproved counts one approved confirmation.
func (m *Metrics) IncConfirmationApproved() {
	if m != nil {
		m.ConfirmationsApproved.Inc()
	}
}

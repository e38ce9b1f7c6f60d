package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics provides observability for the property workflow and its
// background consumers. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Workflow operations by name and outcome
	Operations *prometheus.CounterVec

	// Pin requests by artifact kind and outcome
	Pins *prometheus.CounterVec

	// Time between submitting a transaction and its receipt
	ConfirmationWait *prometheus.HistogramVec

	// Events dropped because the queue was full or closed
	EventsDropped prometheus.Counter

	// Journal writes by outcome
	JournalWrites *prometheus.CounterVec

	// Properties refreshed by chain sync
	SyncedProperties prometheus.Counter
}

// New registers all metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "estatechain_workflow_operations_total",
			Help: "Total workflow operations by name and outcome",
		}, []string{"operation", "outcome"}),

		Pins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "estatechain_pins_total",
			Help: "Total pin requests by artifact kind and outcome",
		}, []string{"kind", "outcome"}), // kind: "image", "metadata"

		ConfirmationWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estatechain_confirmation_wait_seconds",
			Help:    "Duration between transaction submission and receipt",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"operation"}),

		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "estatechain_events_dropped_total",
			Help: "Property events dropped by the event queue",
		}),

		JournalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "estatechain_journal_writes_total",
			Help: "Journal writes by outcome",
		}, []string{"outcome"}),

		SyncedProperties: factory.NewCounter(prometheus.CounterOpts{
			Name: "estatechain_sync_properties_total",
			Help: "Properties refreshed from the registry",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveOperation records the outcome of a workflow operation.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome(err)).Inc()
	}
}

// ObservePin records the outcome of a pin request.
func (m *Metrics) ObservePin(kind string, err error) {
	if m != nil {
		m.Pins.WithLabelValues(kind, outcome(err)).Inc()
	}
}

// ObserveConfirmationWait records how long a receipt took to arrive.
func (m *Metrics) ObserveConfirmationWait(operation string, d time.Duration) {
	if m != nil {
		m.ConfirmationWait.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementDropped records a dropped event.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

// ObserveJournalWrite records the outcome of a journal write.
func (m *Metrics) ObserveJournalWrite(err error) {
	if m != nil {
		m.JournalWrites.WithLabelValues(outcome(err)).Inc()
	}
}

// IncrementSynced records a property refreshed by chain sync.
func (m *Metrics) IncrementSynced() {
	if m != nil {
		m.SyncedProperties.Inc()
	}
}

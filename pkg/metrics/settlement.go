package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks the money-path counters exported by the engine.
type SettlementMetrics struct {
	ledgerEntries     *prometheus.CounterVec
	duplicateEntries  *prometheus.CounterVec
	payoutTransitions *prometheus.CounterVec
	openFlags         prometheus.Gauge
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Ledger entries appended, labelled by entry type.",
	}, []string{"entry_type"})
	duplicateEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_duplicate_entries_total",
		Help: "Ledger appends suppressed by the idempotency constraint.",
	}, []string{"entry_type"})
	payoutTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_transitions_total",
		Help: "Payout request state transitions.",
	}, []string{"to_status"})
	openFlags := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reconciliation_open_flags",
		Help: "Reconciliation flags currently awaiting operator review.",
	})
	reg.MustRegister(ledgerEntries, duplicateEntries, payoutTransitions, openFlags)
	return &SettlementMetrics{
		ledgerEntries:     ledgerEntries,
		duplicateEntries:  duplicateEntries,
		payoutTransitions: payoutTransitions,
		openFlags:         openFlags,
	}
}

// IncLedgerEntry counts an appended ledger entry.
func (m *SettlementMetrics) IncLedgerEntry(entryType string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

// IncDuplicateEntry counts an append suppressed as a duplicate.
func (m *SettlementMetrics) IncDuplicateEntry(entryType string) {
	if m == nil || m.duplicateEntries == nil {
		return
	}
	m.duplicateEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

// IncPayoutTransition counts a payout state transition.
func (m *SettlementMetrics) IncPayoutTransition(toStatus string) {
	if m == nil || m.payoutTransitions == nil {
		return
	}
	m.payoutTransitions.WithLabelValues(normalizeLabel(toStatus)).Inc()
}

// SetOpenFlags records the current open reconciliation flag count.
func (m *SettlementMetrics) SetOpenFlags(count float64) {
	if m == nil || m.openFlags == nil {
		return
	}
	m.openFlags.Set(count)
}

// Package metrics defines the Prometheus collectors of the ledger, the sync
// engine, the voice parser and the remote server.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgersync"

// Metrics groups every collector of the module.
type Metrics struct {
	LedgerMutations *prometheus.CounterVec
	SyncAttempts    *prometheus.CounterVec
	SyncState       *prometheus.GaugeVec
	VoiceOutcomes   *prometheus.CounterVec
	RPCRequests     *prometheus.CounterVec
}

// SyncStates lists the label values of the sync state gauge.
var SyncStates = []string{"idle", "syncing", "offline"}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Ledger mutations by operation and result.",
		}, []string{"op", "result"}),
		SyncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Remote sync attempts by direction and result.",
		}, []string{"op", "result"}),
		SyncState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "state",
			Help:      "1 for the current sync engine state, 0 otherwise.",
		}, []string{"state"}),
		VoiceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voice",
			Name:      "utterances_total",
			Help:      "Voice utterances by outcome.",
		}, []string{"outcome"}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Remote store RPCs by procedure and code.",
		}, []string{"procedure", "code"}),
	}
	reg.MustRegister(m.LedgerMutations, m.SyncAttempts, m.SyncState, m.VoiceOutcomes, m.RPCRequests)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Mutation counts one ledger operation.
func (m *Metrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	m.LedgerMutations.WithLabelValues(op, result(err)).Inc()
}

// SyncAttempt counts one push or pull attempt.
func (m *Metrics) SyncAttempt(op string, err error) {
	if m == nil {
		return
	}
	m.SyncAttempts.WithLabelValues(op, result(err)).Inc()
}

// SetSyncState marks state as current.
func (m *Metrics) SetSyncState(state string) {
	if m == nil {
		return
	}
	for _, s := range SyncStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SyncState.WithLabelValues(s).Set(v)
	}
}

// Utterance counts one voice parser outcome.
func (m *Metrics) Utterance(outcome string) {
	if m == nil {
		return
	}
	m.VoiceOutcomes.WithLabelValues(outcome).Inc()
}

// RPC counts one handled remote store call.
func (m *Metrics) RPC(procedure, code string) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(procedure, code).Inc()
}

// Package metrics counts history transitions and persistence outcomes.
//
// A nil *Recorder is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the editor's Prometheus collectors.
type Recorder struct {
	transitions  *prometheus.CounterVec
	persistFails *prometheus.CounterVec
	persistOK    *prometheus.CounterVec
	idFallbacks  prometheus.Counter
	staleGuards  *prometheus.CounterVec
	pageSwitches prometheus.Counter
}

// New registers the collectors on reg. Passing a fresh registry per test
// keeps registrations from colliding.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "history_transitions_total",
			Help:      "History engine transitions by kind (push, undo, redo, reset).",
		}, []string{"kind"}),
		persistFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "persistence_failures_total",
			Help:      "Failed persistence calls by operation.",
		}, []string{"op"}),
		persistOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "persistence_success_total",
			Help:      "Successful persistence calls by operation.",
		}, []string{"op"}),
		idFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "id_fallbacks_total",
			Help:      "Element ids synthesized locally because the store gave none.",
		}),
		staleGuards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "stale_snapshot_guards_total",
			Help:      "Reconciliations that refused to clear a non-empty collection.",
		}, []string{"collection"}),
		pageSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notation",
			Name:      "page_switches_total",
			Help:      "Active page changes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.transitions, r.persistFails, r.persistOK, r.idFallbacks, r.staleGuards, r.pageSwitches)
	}
	return r
}

// Transition counts one history transition.
func (r *Recorder) Transition(kind string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(kind).Inc()
}

// Persist counts the outcome of one store call.
func (r *Recorder) Persist(op string, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.persistFails.WithLabelValues(op).Inc()
		return
	}
	r.persistOK.WithLabelValues(op).Inc()
}

// IDFallback counts one locally synthesized id.
func (r *Recorder) IDFallback() {
	if r == nil {
		return
	}
	r.idFallbacks.Inc()
}

// StaleGuard counts one refused reconciliation.
func (r *Recorder) StaleGuard(collection string) {
	if r == nil {
		return
	}
	r.staleGuards.WithLabelValues(collection).Inc()
}

// PageSwitch counts one active page change.
func (r *Recorder) PageSwitch() {
	if r == nil {
		return
	}
	r.pageSwitches.Inc()
}

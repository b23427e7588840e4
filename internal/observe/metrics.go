// Package observe exposes Prometheus metrics for runs.
package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PhaseOutcomes counts terminal phase statuses per phase name.
	PhaseOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ekstack",
		Name:      "phase_outcomes_total",
		Help:      "Terminal phase statuses observed across runs.",
	}, []string{"phase", "status"})

	// ForcedCleanups counts forced cleanup passes during reclamation.
	ForcedCleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ekstack",
		Name:      "reclaim_forced_cleanups_total",
		Help:      "Forced cleanup passes run against stuck resources.",
	}, []string{"kind"})

	// PollTimeouts counts convergence waits that timed out.
	PollTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ekstack",
		Name:      "poll_timeouts_total",
		Help:      "Bounded waits that hit their deadline.",
	}, []string{"target"})
)

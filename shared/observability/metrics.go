package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay and title-policy counters, exposed on /metrics.
var (
	RelayTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_turns_total",
		Help: "Number of chat turns relayed upstream",
	})

	RelayStreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_stream_errors_total",
		Help: "Number of inline error events delivered on chat streams",
	})

	TitleJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "title_jobs_total",
		Help: "Title derivation jobs by outcome",
	}, []string{"outcome"})
)

// Title job outcomes
const (
	TitleOutcomeUpdated = "updated"
	TitleOutcomeSkipped = "skipped"
	TitleOutcomeFailed  = "failed"
	TitleOutcomeDropped = "dropped"
)

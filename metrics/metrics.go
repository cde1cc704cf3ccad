// Package metrics exposes the pipeline's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRuns counts terminal run outcomes per job kind.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradefeed_job_runs_total",
		Help: "Terminal pipeline run outcomes.",
	}, []string{"job", "outcome"})

	// TopicsInserted counts topics added to the sourcing queue.
	TopicsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradefeed_topics_inserted_total",
		Help: "Candidate topics inserted by sourcing runs.",
	})

	// BatchLines counts reconciled result lines by outcome, so systemic
	// generation failures are distinguishable from expected self-filtering.
	BatchLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradefeed_batch_lines_total",
		Help: "Batch result lines by reconciliation outcome.",
	}, []string{"outcome"})

	// RepliesInserted counts synthesized replies persisted as posts.
	RepliesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradefeed_replies_inserted_total",
		Help: "Synthesized replies persisted as posts.",
	})
)

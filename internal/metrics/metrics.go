package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verisum",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verisum",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verisum",
			Name:      "cache_lookups_total",
			Help:      "Document and query cache lookups",
		},
		[]string{"cache", "result"}, // result: memory, durable, miss
	)

	EvidenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verisum",
			Name:      "evidence_requests_total",
			Help:      "Evidence source lookups by outcome",
		},
		[]string{"source", "outcome"}, // outcome: found, not_found, error
	)

	EvidenceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verisum",
			Name:      "evidence_request_duration_seconds",
			Help:      "Evidence source lookup duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verisum",
			Name:      "verdicts_total",
			Help:      "Verification verdicts issued",
		},
		[]string{"verdict"},
	)
)

var registerOnce sync.Once

// Register registers all verisum collectors with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			CacheLookupsTotal,
			EvidenceRequestsTotal,
			EvidenceRequestDuration,
			VerdictsTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}

// Package metrics exposes the engine's Prometheus collectors. They use
// the default registry and are served from the HTTP transport's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed turns by domain and emitted action kind.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converse_turns_total",
		Help: "Completed dialogue turns by domain and action kind.",
	}, []string{"domain", "action"})

	// OracleFallbacks counts oracle calls that degraded to the local
	// fallback, by call site.
	OracleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "converse_oracle_fallbacks_total",
		Help: "Oracle calls that fell back to local handling, by call site.",
	}, []string{"site"})

	// CatalogMisses counts catalog lookups that stayed unresolved after
	// recovery candidates were exhausted.
	CatalogMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converse_catalog_misses_total",
		Help: "Catalog lookups unresolved after recovery attempts.",
	})

	// StateResets counts stored state documents that failed to parse and
	// were replaced with a fresh default.
	StateResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "converse_state_resets_total",
		Help: "Session state documents reset after a parse failure.",
	})
)

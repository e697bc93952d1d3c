package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oncotrack_http_requests_total",
		Help: "HTTP requests served, by method, route template, and status code.",
	}, []string{"method", "route", "status"})

	RollupsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncotrack_rollups_computed_total",
		Help: "Project rollup summaries computed from the store.",
	})

	RollupCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncotrack_rollup_cache_hits_total",
		Help: "Project rollup summaries served from the Redis cache.",
	})

	ChangesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncotrack_lesion_changes_computed_total",
		Help: "Lesion change analyses computed.",
	})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncotrack_events_published_total",
		Help: "Registry mutation events published to the event bus.",
	})

	EventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oncotrack_events_failed_total",
		Help: "Registry mutation events that failed to publish.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

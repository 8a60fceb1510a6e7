package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr", Name: "store_ops_total", Help: "Table store operations by outcome",
	}, []string{"op", "table", "outcome"})
	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "okr", Name: "store_op_seconds", Help: "Table store backend latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr", Name: "cache_lookups_total", Help: "Table cache lookups",
	}, []string{"result"})
	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "okr", Name: "cache_invalidations_total", Help: "Table cache invalidations",
	})
	SchemaRepairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr", Name: "schema_repairs_total", Help: "Reads where the migrator repaired schema drift",
	}, []string{"table"})
	OverwriteRisk = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr", Name: "replace_all_total", Help: "Whole-table replaces by outcome",
	}, []string{"table", "outcome"})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "okr", Name: "http_requests_total", Help: "API requests by status class",
	}, []string{"route", "code"})
	StorePing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "okr", Name: "store_ping_seconds", Help: "Backend ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(StoreOps, StoreLatency, CacheLookups, CacheInvalidations,
		SchemaRepairs, OverwriteRisk, HTTPRequests, StorePing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveStorePing(d time.Duration) { StorePing.Observe(d.Seconds()) }

func ObserveStoreOp(op, table, outcome string, d time.Duration) {
	StoreOps.WithLabelValues(op, table, outcome).Inc()
	StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

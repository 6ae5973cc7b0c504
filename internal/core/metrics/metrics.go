package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "code"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_audit_entries_total", Help: "Audit entries appended"},
		[]string{"action", "entity_type"},
	)
	CatalogMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_mutations_total", Help: "Catalog store commits by outcome"},
		[]string{"outcome"},
	)
	ImportRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_import_records_total", Help: "Imported package entries by outcome"},
		[]string{"outcome", "dry_run"},
	)
	ImportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_import_duration_seconds",
			Help:    "Duration of import runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"dry_run"},
	)
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_auth_attempts_total", Help: "Sign-in and sign-up attempts"},
		[]string{"op", "outcome"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "catalog_cache_lookups_total", Help: "Read-through cache lookups by result"},
		[]string{"key", "result"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "catalog_active_sessions", Help: "Sessions known to the registry after the last sweep"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, AuditEntries, CatalogMutations, ImportRecords, ImportDuration, AuthAttempts, CacheLookups, ActiveSessions)
}

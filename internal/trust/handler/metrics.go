package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/NexusTrust/internal/trust/service"
)

var (
	trustRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	trustRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trust_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	trustDeclarationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trust_declarations_total",
		Help: "Total trust declarations created.",
	})

	trustAuditAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trust_audit_appends_total",
		Help: "Total audit entries appended.",
	})

	trustAuditAppendAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trust_audit_append_attempts",
		Help:    "Attempts needed to append an audit entry.",
		Buckets: []float64{1, 2, 3, 4, 5, 6},
	})

	trustAppendConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trust_audit_append_conflicts_total",
		Help: "Total appends that lost the race for a chain head.",
	})

	trustIntegrityFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trust_chain_integrity_failures_total",
		Help: "Total audit chain integrity failures detected.",
	})

	trustCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_score_cache_lookups_total",
		Help: "Score cache lookups by result.",
	}, []string{"result"})

	trustDegradedReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trust_degraded_reads_total",
		Help: "Total score reads served from the last known snapshot.",
	})

	trustHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_health_checks_total",
		Help: "Total collaborator health probes by name and result.",
	}, []string{"name", "result"})

	trustCollaboratorUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trust_collaborator_up",
		Help: "1 if the collaborator's last probe succeeded, else 0.",
	}, []string{"name"})

	trustAlertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_alert_deliveries_total",
		Help: "Total alert webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		trustRequestsTotal.WithLabelValues(method, path, status).Inc()
		trustRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// EngineHooks returns engine callbacks that feed the trust_* metrics.
func EngineHooks() service.Hooks {
	return service.Hooks{
		DeclarationCreated: trustDeclarationsTotal.Inc,
		AuditAppended: func(attempts int) {
			trustAuditAppendsTotal.Inc()
			trustAuditAppendAttempts.Observe(float64(attempts))
		},
		AppendConflict:   trustAppendConflictsTotal.Inc,
		IntegrityFailure: func(string) { trustIntegrityFailuresTotal.Inc() },
		CacheLookup: func(hit bool) {
			if hit {
				trustCacheLookupsTotal.WithLabelValues("hit").Inc()
			} else {
				trustCacheLookupsTotal.WithLabelValues("miss").Inc()
			}
		},
		DegradedRead: trustDegradedReadsTotal.Inc,
	}
}

// RecordHealthCheck records a collaborator probe result.
func RecordHealthCheck(name string, healthy bool) {
	if healthy {
		trustHealthChecksTotal.WithLabelValues(name, "success").Inc()
		trustCollaboratorUp.WithLabelValues(name).Set(1)
	} else {
		trustHealthChecksTotal.WithLabelValues(name, "failure").Inc()
		trustCollaboratorUp.WithLabelValues(name).Set(0)
	}
}

// RecordAlertDelivery records an alert webhook delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		trustAlertDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		trustAlertDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

package httpclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "cosmos_http_request_duration_seconds",
		Help:    "Duration of outbound HTTP requests by service, method and status",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "method", "status"},
)

// statusLabel is the status code, or "error" when no response arrived.
func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}

func recordRequest(service string, method Method, status int, elapsed time.Duration) {
	requestDuration.WithLabelValues(service, method.String(), statusLabel(status)).Observe(elapsed.Seconds())
}

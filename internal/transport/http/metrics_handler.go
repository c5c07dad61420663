package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus scrape endpoint. The OpenTelemetry
// meter provider exports into the default Prometheus registry, so the
// stock promhttp handler serves everything the middleware records.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

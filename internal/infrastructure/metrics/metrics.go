// Package metrics provides Prometheus instrumentation for the price feed and HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FeedUpdatesTotal counts price samples applied, partitioned by source (stream/poll).
	FeedUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcfee_feed_updates_total",
		Help: "Price samples applied to the current price cell",
	}, []string{"source"})

	// FeedReconnectsTotal counts scheduled stream reconnect attempts.
	FeedReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcfee_feed_reconnects_total",
		Help: "Stream reconnect attempts",
	})

	// FeedParseErrorsTotal counts stream messages that could not be decoded.
	FeedParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcfee_feed_parse_errors_total",
		Help: "Stream messages that failed to parse",
	})

	// FeedPollErrorsTotal counts failed REST polls (swallowed by the feed).
	FeedPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcfee_feed_poll_errors_total",
		Help: "REST ticker polls that failed",
	})

	// FeedState is the current connection state (0 connecting, 1 live, 2 disconnected, 3 error).
	FeedState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btcfee_feed_state",
		Help: "Current stream connection state",
	})

	// LastTradePrice is the latest known BTC/JPY price.
	LastTradePrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btcfee_last_trade_price_jpy",
		Help: "Latest known last traded price in JPY",
	})

	// CalculationsTotal counts fee calculations by mode and outcome.
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcfee_calculations_total",
		Help: "Fee calculations served",
	}, []string{"mode", "result"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcfee_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "btcfee_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

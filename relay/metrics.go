package relay

import (
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	branchNone  = "none"
	branchImage = "image"
	branchText  = "text"

	outcomeOK    = "ok"
	outcomeError = "error"
)

// metrics are registered on a per-relay registry so several relays can live in
// one process.
type metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	imageFallbacks prometheus.Counter
	upstreamErrors *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolchat",
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Chat turns by reply branch and outcome",
			},
			[]string{"branch", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolchat",
				Subsystem: "relay",
				Name:      "time_to_reply_seconds",
				Help:      "Time until the reply starts, by branch",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"branch"},
		),
		imageFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schoolchat",
				Subsystem: "relay",
				Name:      "image_fallbacks_total",
				Help:      "Visual requests answered by the text branch",
			},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolchat",
				Subsystem: "relay",
				Name:      "upstream_errors_total",
				Help:      "Failed gateway calls by upstream status (0 for transport errors)",
			},
			[]string{"status"},
		),
	}
}

func (m *metrics) observeUpstreamError(status int) {
	m.upstreamErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

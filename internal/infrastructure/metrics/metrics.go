package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors served on /metrics.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "changas",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	messagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "moderation",
			Name:      "messages_total",
			Help:      "Messages inspected by the moderation pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	censorReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "moderation",
			Name:      "censor_reasons_total",
			Help:      "Detector reasons recorded on censored messages.",
		},
		[]string{"reason"},
	)

	notifierCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "moderation",
			Name:      "notifier_calls_total",
			Help:      "Infraction notifications sent, by result.",
		},
		[]string{"result"},
	)

	dispatchQueue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "changas",
			Subsystem: "moderation",
			Name:      "dispatch_queue_depth",
			Help:      "Pending moderation events per shard.",
		},
		[]string{"shard"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "negotiation",
			Name:      "transitions_total",
			Help:      "State machine transitions attempted, by entity, action and result.",
		},
		[]string{"entity", "action", "result"},
	)

	offersExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "changas",
			Subsystem: "negotiation",
			Name:      "offers_expired_total",
			Help:      "Offers moved to EXPIRED by the sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		messagesProcessed,
		censorReasons,
		notifierCalls,
		dispatchQueue,
		transitions,
		offersExpired,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(c.Response().Status)
			httpRequests.WithLabelValues(c.Request().Method, path, status).Inc()
			httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// RecordMessage counts one pipeline outcome: unchanged, censored, skipped or failed.
func RecordMessage(outcome string) {
	messagesProcessed.WithLabelValues(outcome).Inc()
}

func RecordCensorReasons(phone, email, social bool) {
	if phone {
		censorReasons.WithLabelValues("phone").Inc()
	}
	if email {
		censorReasons.WithLabelValues("email").Inc()
	}
	if social {
		censorReasons.WithLabelValues("social").Inc()
	}
}

// RecordNotifier counts one notifier call: ok, banned or failed.
func RecordNotifier(result string) {
	notifierCalls.WithLabelValues(result).Inc()
}

func SetDispatchQueue(shard int, depth int) {
	dispatchQueue.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
}

func RecordTransition(entity, action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	transitions.WithLabelValues(entity, action, result).Inc()
}

func AddOffersExpired(n int) {
	offersExpired.Add(float64(n))
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "lending"

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry         *prometheus.Registry
	loansCreated     prometheus.Counter
	paymentsRecorded *prometheus.CounterVec
	paymentAmount    prometheus.Histogram
	engineErrors     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		loansCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Total number of loans originated",
		}),
		paymentsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Total number of payments appended to loan ledgers",
		}, []string{"payment_type"}),
		paymentAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_amount",
			Help:      "Distribution of recorded payment amounts",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),
		engineErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Engine operations that returned an error, by kind",
		}, []string{"kind"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

func (c *Collector) LoanCreated() {
	if c == nil {
		return
	}
	c.loansCreated.Inc()
}

func (c *Collector) PaymentRecorded(paymentType string, amount decimal.Decimal) {
	if c == nil {
		return
	}
	c.paymentsRecorded.WithLabelValues(paymentType).Inc()
	c.paymentAmount.Observe(amount.InexactFloat64())
}

func (c *Collector) EngineError(kind string) {
	if c == nil {
		return
	}
	c.engineErrors.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency labelled by the matched mux route
// template, which keeps loan ids out of the label set.
func (c *Collector) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			c.requestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
		})
	}
}

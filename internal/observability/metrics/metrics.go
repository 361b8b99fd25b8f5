package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var (
	once                     sync.Once
	metricsRouter            *chi.Mux
	ledgerOperationsCounter  *prometheus.CounterVec
	shareSupplyGauge         prometheus.Gauge
	oraclePriceGauge         prometheus.Gauge
	oracleReportsCounter     *prometheus.CounterVec
	queueTransitionsCounter  *prometheus.CounterVec
	settlementBatchHistogram *prometheus.HistogramVec
	postHookFailureCounter   prometheus.Counter
	eventPublishErrorCounter prometheus.Counter
	dbLatency                *prometheus.HistogramVec
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics initializes and register the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

	ledgerOperationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "The total number of ledger operations split by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	shareSupplyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "share_supply",
			Help: "Total outstanding shares after the last committed operation",
		},
	)

	oraclePriceGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_price",
			Help: "Last accepted per-share price report",
		},
	)

	oracleReportsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_reports_total",
			Help: "The total number of oracle report calls split by outcome",
		},
		[]string{"status"},
	)

	queueTransitionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_queue_transitions_total",
			Help: "Redemption request state transitions split by target state",
		},
		[]string{"state"},
	)

	settlementBatchHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_batch_duration_seconds",
			Help:    "Histogram of batch settlement durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"status"},
	)

	postHookFailureCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "post_hook_failure_count",
			Help: "The total number of post-hook failures captured and isolated",
		},
	)

	eventPublishErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_error_count",
			Help: "The total number of errors when publishing events to the stream",
		},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)

	prometheus.MustRegister(
		ledgerOperationsCounter,
		shareSupplyGauge,
		oraclePriceGauge,
		oracleReportsCounter,
		queueTransitionsCounter,
		settlementBatchHistogram,
		postHookFailureCounter,
		eventPublishErrorCounter,
		dbLatency,
	)
}

func outcome(failure bool) Outcome {
	if failure {
		return Error
	}
	return Success
}

// Record helpers are nil-safe so packages can be exercised in tests without
// starting the metrics server.

func RecordLedgerOperation(operation string, failure bool) {
	if ledgerOperationsCounter == nil {
		return
	}
	ledgerOperationsCounter.WithLabelValues(operation, outcome(failure).String()).Inc()
}

func SetShareSupply(supply float64) {
	if shareSupplyGauge == nil {
		return
	}
	shareSupplyGauge.Set(supply)
}

func SetOraclePrice(price float64) {
	if oraclePriceGauge == nil {
		return
	}
	oraclePriceGauge.Set(price)
}

func RecordOracleReport(failure bool) {
	if oracleReportsCounter == nil {
		return
	}
	oracleReportsCounter.WithLabelValues(outcome(failure).String()).Inc()
}

func RecordQueueTransition(state string) {
	if queueTransitionsCounter == nil {
		return
	}
	queueTransitionsCounter.WithLabelValues(state).Inc()
}

func RecordSettlementBatchDuration(d time.Duration, failure bool) {
	if settlementBatchHistogram == nil {
		return
	}
	settlementBatchHistogram.WithLabelValues(outcome(failure).String()).Observe(d.Seconds())
}

func RecordPostHookFailure() {
	if postHookFailureCounter == nil {
		return
	}
	postHookFailureCounter.Inc()
}

func RecordEventPublishError() {
	if eventPublishErrorCounter == nil {
		return
	}
	eventPublishErrorCounter.Inc()
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	if dbLatency == nil {
		return
	}
	dbLatency.WithLabelValues(method, outcome(failure).String()).Observe(d.Seconds())
}

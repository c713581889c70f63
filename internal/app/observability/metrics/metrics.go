package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal     metric.Int64Counter
	HTTPRequestDuration   metric.Float64Histogram
	SearchRequestsTotal   metric.Int64Counter
	SearchFailuresTotal   metric.Int64Counter
	StageDurationSeconds  metric.Float64Histogram
	LLMCallsTotal         metric.Int64Counter
	LLMCallDuration       metric.Float64Histogram
	ProviderCallsTotal    metric.Int64Counter
	ProviderCallDuration  metric.Float64Histogram
	CacheRequestsTotal    metric.Int64Counter
	WSActiveSubscriptions metric.Int64Gauge
	JobsInflightGauge     metric.Int64Gauge
	DBQueryErrorsTotal    metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("loci-search")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"search_requests_total",
			metric.WithDescription("Total number of accepted search requests, labelled by route"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_requests_total: %v", err)
		}

		m.SearchFailuresTotal, err = meter.Int64Counter(
			"search_failures_total",
			metric.WithDescription("Total number of search jobs that ended DONE_FAILED, labelled by error kind"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_failures_total: %v", err)
		}

		m.StageDurationSeconds, err = meter.Float64Histogram(
			"search_stage_duration_seconds",
			metric.WithDescription("Duration of individual pipeline stages in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_stage_duration_seconds: %v", err)
		}

		m.LLMCallsTotal, err = meter.Int64Counter(
			"llm_calls_total",
			metric.WithDescription("Total number of LLM calls, labelled by stage and outcome"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_calls_total: %v", err)
		}

		m.LLMCallDuration, err = meter.Float64Histogram(
			"llm_call_duration_seconds",
			metric.WithDescription("Duration of LLM calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_call_duration_seconds: %v", err)
		}

		m.ProviderCallsTotal, err = meter.Int64Counter(
			"provider_calls_total",
			metric.WithDescription("Total number of Places provider calls, labelled by endpoint and outcome"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_calls_total: %v", err)
		}

		m.ProviderCallDuration, err = meter.Float64Histogram(
			"provider_call_duration_seconds",
			metric.WithDescription("Duration of Places provider calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_call_duration_seconds: %v", err)
		}

		m.CacheRequestsTotal, err = meter.Int64Counter(
			"cache_requests_total",
			metric.WithDescription("Total number of cache lookups, labelled by cache and tier outcome"),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_requests_total: %v", err)
		}

		m.WSActiveSubscriptions, err = meter.Int64Gauge(
			"ws_active_subscriptions",
			metric.WithDescription("Current number of active WebSocket search subscriptions"),
			metric.WithUnit("{subscription}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create ws_active_subscriptions: %v", err)
		}

		m.JobsInflightGauge, err = meter.Int64Gauge(
			"search_jobs_inflight",
			metric.WithDescription("Current number of QUEUED or RUNNING search jobs"),
			metric.WithUnit("{job}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_jobs_inflight: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

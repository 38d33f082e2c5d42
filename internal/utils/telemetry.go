package utils

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moi"

var (
	Registry = prometheus.NewRegistry()

	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by outcome.",
	}, []string{"status"})

	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of a full pipeline run.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	RecordsParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_parsed_total",
		Help:      "Export records consumed by pipeline runs, per platform.",
	}, []string{"platform"})

	DateFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "date_fallbacks_total",
		Help:      "Degraded date handling, by kind.",
	}, []string{"kind"})

	ShopifyDayFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shopify_day_fallbacks_total",
		Help:      "Days for which no Shopify row matched and metrics were marked unavailable.",
	})

	CoverageDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coverage_filter_dropped_total",
		Help:      "Shopify pivot rows dropped for lacking a Meta ad set.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PipelineRuns,
		PipelineDuration,
		RecordsParsed,
		DateFallbacks,
		ShopifyDayFallbacks,
		CoverageDropped,
	)
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

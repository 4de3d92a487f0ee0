// Package metrics exposes Prometheus collectors for compilations, intent
// extraction and warehouse queries.
package metrics

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/semantic"
)

const namespace = "semlayer"

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeNoMatch = "no_match"
)

// Collectors owns one registry and every semlayer collector.
type Collectors struct {
	registry *prometheus.Registry

	CompileTotal    *prometheus.CounterVec
	CompileDuration *prometheus.HistogramVec
	ExtractTotal    *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	ModelMetrics    prometheus.Gauge
	ModelSegments   prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),

		CompileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_total",
				Help:      "Compilations by result shape and error code (empty code means success)",
			},
			[]string{"shape", "code"},
		),

		CompileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Time spent compiling an intent to SQL",
				Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"shape"},
		),

		ExtractTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_total",
				Help:      "Natural-language intent extractions by outcome",
			},
			[]string{"outcome"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_cache_lookups_total",
				Help:      "Intent cache lookups by result",
			},
			[]string{"result"},
		),

		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "warehouse_query_duration_seconds",
				Help:      "Warehouse execution time of compiled queries",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			},
			[]string{"shape", "outcome"},
		),

		ModelMetrics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_metrics",
			Help:      "Certified metrics in the loaded semantic model",
		}),

		ModelSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_segments",
			Help:      "Taxonomy segments in the loaded semantic model",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.CompileTotal,
		c.CompileDuration,
		c.ExtractTotal,
		c.CacheLookups,
		c.QueryDuration,
		c.ModelMetrics,
		c.ModelSegments,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

// SetModel records the size of the loaded model.
func (c *Collectors) SetModel(m *semantic.Model) {
	c.ModelMetrics.Set(float64(m.Metrics().Len()))
	c.ModelSegments.Set(float64(len(m.Taxonomy().Segments())))
}

// ObserveCompile records one compile call. shape may be empty when the
// intent was rejected before its shape was known.
func (c *Collectors) ObserveCompile(shape intent.Shape, err error, took time.Duration) {
	code := ""
	if err != nil {
		code = string(semantic.CodeOf(err))
		if code == "" {
			code = "UNKNOWN"
		}
	}
	c.CompileTotal.WithLabelValues(string(shape), code).Inc()
	c.CompileDuration.WithLabelValues(string(shape)).Observe(took.Seconds())
}

// ObserveExtract records one extraction.
func (c *Collectors) ObserveExtract(err error) {
	c.ExtractTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveCacheLookup matches nlu.CachedExtractor.OnLookup.
func (c *Collectors) ObserveCacheLookup(e nlu.CacheEvent) {
	c.CacheLookups.WithLabelValues(string(e)).Inc()
}

// ObserveQuery matches warehouse.Warehouse.OnQuery.
func (c *Collectors) ObserveQuery(shape intent.Shape, took time.Duration, err error) {
	c.QueryDuration.WithLabelValues(string(shape), outcome(err)).Observe(took.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, nlu.ErrNoMatch):
		return OutcomeNoMatch
	default:
		return OutcomeError
	}
}

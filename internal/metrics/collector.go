package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// CollectorConfig names the exported metric family.
type CollectorConfig struct {
	Namespace string
	Subsystem string
}

// DefaultCollectorConfig returns the default metric names.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{Namespace: "mealplan", Subsystem: "engine"}
}

// Collector exposes engine activity as Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	plansTotal         *prometheus.CounterVec
	flaggedDaysTotal   prometheus.Counter
	generationDuration prometheus.Histogram
	groceryItems       prometheus.Histogram
	ingestedRecipes    *prometheus.CounterVec
}

// NewCollector registers the engine metrics plus Go runtime and process
// collectors on a fresh registry.
func NewCollector(cfg CollectorConfig) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		plansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "plans_generated_total",
			Help:      "Plan generations by outcome",
		}, []string{"outcome"}),
		flaggedDaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "flagged_days_total",
			Help:      "Plan days that missed the calorie tolerance band",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Duration of plan generation in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		groceryItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "grocery_list_items",
			Help:      "Number of lines per built grocery list",
			Buckets:   prometheus.LinearBuckets(10, 10, 8),
		}),
		ingestedRecipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "recipes_ingested_total",
			Help:      "Recipes processed by catalog ingestion",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.plansTotal,
		c.flaggedDaysTotal,
		c.generationDuration,
		c.groceryItems,
		c.ingestedRecipes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry to serve from /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveGeneration records one generation attempt.
func (c *Collector) ObserveGeneration(duration time.Duration, flaggedDays int, err error) {
	if err != nil {
		c.plansTotal.WithLabelValues("failure").Inc()
		return
	}
	c.plansTotal.WithLabelValues("success").Inc()
	c.flaggedDaysTotal.Add(float64(flaggedDays))
	c.generationDuration.Observe(duration.Seconds())
}

// ObserveGroceryList records the size of a built grocery list.
func (c *Collector) ObserveGroceryList(items int) {
	c.groceryItems.Observe(float64(items))
}

// ObserveIngestion records ingestion outcomes.
func (c *Collector) ObserveIngestion(imported, skipped, failed int) {
	c.ingestedRecipes.WithLabelValues("imported").Add(float64(imported))
	c.ingestedRecipes.WithLabelValues("skipped").Add(float64(skipped))
	c.ingestedRecipes.WithLabelValues("failed").Add(float64(failed))
}

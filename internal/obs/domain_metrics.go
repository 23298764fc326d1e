package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingCalcTotal counts calculation requests by outcome.
	PricingCalcTotal *prometheus.CounterVec
	// PricingCalcDuration records end-to-end calculation latency in milliseconds.
	PricingCalcDuration prometheus.Histogram
	// PricingUnknownProductTotal counts cart lines priced without a catalog entry.
	PricingUnknownProductTotal prometheus.Counter
	// PricingCatalogFallbackTotal counts calculations degraded to zero discounts
	// because the catalog could not be read.
	PricingCatalogFallbackTotal prometheus.Counter
	// PricingLinesPerCart observes how many lines each calculation carries.
	PricingLinesPerCart prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers pricing-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingCalcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_calculations_total",
			Help:      "Count of pricing calculation outcomes.",
		}, []string{"result"})
		PricingCalcDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_calculation_duration_ms",
			Help:      "Latency of pricing calculations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		})
		PricingUnknownProductTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_unknown_product_total",
			Help:      "Number of cart lines priced for product codes missing from the catalog.",
		})
		PricingCatalogFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_catalog_fallback_total",
			Help:      "Number of calculations that degraded to zero discounts due to catalog unavailability.",
		})
		PricingLinesPerCart = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_lines_per_cart",
			Help:      "Distribution of cart line counts per calculation.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		})

		mustRegisterCollector(reg, PricingCalcTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingCalcTotal = v
			}
		})
		mustRegisterCollector(reg, PricingCalcDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PricingCalcDuration = v
			}
		})
		mustRegisterCollector(reg, PricingUnknownProductTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PricingUnknownProductTotal = v
			}
		})
		mustRegisterCollector(reg, PricingCatalogFallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PricingCatalogFallbackTotal = v
			}
		})
		mustRegisterCollector(reg, PricingLinesPerCart, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PricingLinesPerCart = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

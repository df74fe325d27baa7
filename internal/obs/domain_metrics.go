package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts cart quote computations by zone and outcome.
	QuoteTotal *prometheus.CounterVec
	// PromoValidationTotal counts promo code validations by outcome.
	PromoValidationTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// StockAdjustmentTotal counts stock adjustments by operation and outcome.
	StockAdjustmentTotal *prometheus.CounterVec
	// LowStockAlertsTotal counts low-stock alerts enqueued for fulfilment staff.
	LowStockAlertsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers storefront Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of cart price quotes by delivery zone and outcome.",
		}, []string{"zone", "result"})
		PromoValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_validation_total",
			Help:      "Count of promo code validations by outcome.",
		}, []string{"result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		StockAdjustmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustment_total",
			Help:      "Count of stock adjustments by operation and outcome.",
		}, []string{"op", "result"})
		LowStockAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Number of low-stock alert tasks enqueued.",
		})

		registerOrReuse(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		registerOrReuse(reg, PromoValidationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoValidationTotal = v
			}
		})
		registerOrReuse(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		registerOrReuse(reg, StockAdjustmentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StockAdjustmentTotal = v
			}
		})
		registerOrReuse(reg, LowStockAlertsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				LowStockAlertsTotal = v
			}
		})
	})
}

package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// LineResolutionsTotal counts resolved cart lines by winning discount source.
	LineResolutionsTotal *prometheus.CounterVec
	// QuoteLatency records cart quote computation latency in milliseconds.
	QuoteLatency prometheus.Histogram
	// QuoteFallbacksTotal counts quotes served undiscounted because resolution failed.
	QuoteFallbacksTotal prometheus.Counter
	// CouponRedemptionsTotal counts coupon redemption attempts by outcome.
	CouponRedemptionsTotal *prometheus.CounterVec
	// CampaignConflictsTotal counts conflict-detector findings by severity.
	CampaignConflictsTotal *prometheus.CounterVec
	// CampaignCacheTotal counts active-campaign cache lookups by result.
	CampaignCacheTotal *prometheus.CounterVec
	// CheckoutsTotal counts checkout attempts by outcome.
	CheckoutsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		LineResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_resolutions_total",
			Help:      "Count of resolved cart lines by winning discount source.",
		}, []string{"source"})
		QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of cart quote computation in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		})
		QuoteFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_fallbacks_total",
			Help:      "Number of quotes served at original prices after a resolution failure.",
		})
		CouponRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Count of coupon redemption attempts by outcome.",
		}, []string{"result"})
		CampaignConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_conflicts_total",
			Help:      "Conflict detector findings by severity.",
		}, []string{"level"})
		CampaignCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_cache_total",
			Help:      "Active-campaign cache lookups by result.",
		}, []string{"result"})
		CheckoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, LineResolutionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LineResolutionsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteLatency = v
			}
		})
		mustRegisterCollector(reg, QuoteFallbacksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				QuoteFallbacksTotal = v
			}
		})
		mustRegisterCollector(reg, CouponRedemptionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponRedemptionsTotal = v
			}
		})
		mustRegisterCollector(reg, CampaignConflictsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CampaignConflictsTotal = v
			}
		})
		mustRegisterCollector(reg, CampaignCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CampaignCacheTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutsTotal = v
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

// ObserveLineSources increments the resolution counter for each priced line source.
func ObserveLineSources(sources []string) {
	if LineResolutionsTotal == nil {
		return
	}
	for _, source := range sources {
		if source == "" {
			source = "none"
		}
		LineResolutionsTotal.WithLabelValues(source).Inc()
	}
}

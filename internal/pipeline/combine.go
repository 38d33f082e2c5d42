package pipeline

import (
	"github.com/samber/lo"

	"github.com/AngelCh415/moi-etl/internal/models"
)

// CombineDaily zips per-day platform metrics into one row per date of r.
// An absent platform (nil slice or missing day) reads as zero; Shopify
// values marked unavailable stay unavailable, as do ratios built on them.
func CombineDaily(r models.DateRange, meta, google []models.DailyAdsMetric, shopify []models.DailyShopifyMetric) []models.IntegratedDailyMetrics {
	metaBy := lo.KeyBy(meta, func(m models.DailyAdsMetric) string { return m.Date })
	googleBy := lo.KeyBy(google, func(m models.DailyAdsMetric) string { return m.Date })
	shopBy := lo.KeyBy(shopify, func(m models.DailyShopifyMetric) string { return m.Date })

	out := make([]models.IntegratedDailyMetrics, 0, len(r.FormattedDates))
	for _, d := range r.FormattedDates {
		m := metaBy[d]
		g := googleBy[d]
		s, ok := shopBy[d]
		if !ok {
			s = zeroShopify(d)
		}
		spend := m.TotalSpend + g.TotalSpend
		out = append(out, models.IntegratedDailyMetrics{
			Date:                    d,
			MetaSpend:               known2(m.TotalSpend),
			MetaCTR:                 known2(m.AvgCTR),
			MetaCPM:                 known2(m.AvgCPM),
			GoogleSpend:             known2(g.TotalSpend),
			GoogleCTR:               known2(g.AvgCTR),
			GoogleCPM:               known2(g.AvgCPM),
			ShopifyUsers:            round2(s.TotalUsers),
			ShopifyATC:              round2(s.TotalATC),
			ShopifyReachedCheckout:  round2(s.TotalReachedCheckout),
			ShopifySessionDuration:  round2(s.SessionDuration),
			UsersAbove1Min:          round2(s.UsersAbove1Min),
			ATCAbove1Min:            round2(s.ATCAbove1Min),
			CheckoutAbove1Min:       round2(s.CheckoutAbove1Min),
			UsersAbove5PagesAnd1Min: round2(s.UsersAbove5PagesAnd1Min),
			ShopifySessions:         round2(s.TotalSessions),
			TotalSpend:              known2(spend),
			CostPerUser:             ratio(models.Known(spend), s.TotalUsers, 1),
			ConversionRate:          ratio(s.TotalReachedCheckout, s.TotalSessions, 100),
		})
	}
	return out
}

func zeroShopify(d string) models.DailyShopifyMetric {
	z := models.Known(0)
	return models.DailyShopifyMetric{
		Date: d, TotalUsers: z, TotalATC: z, TotalReachedCheckout: z, TotalSessions: z,
		SessionDuration: z, UsersAbove1Min: z, ATCAbove1Min: z, CheckoutAbove1Min: z,
		UsersAbove5PagesAnd1Min: z, Pageviews: z,
	}
}

func round2(v models.Value) models.Value {
	f, ok := v.Float()
	if !ok {
		return v
	}
	return known2(f)
}

// ratio is num/den×scale, unavailable if either side is, and 0 when den is 0.
func ratio(num, den models.Value, scale float64) models.Value {
	n, ok1 := num.Float()
	d, ok2 := den.Float()
	if !ok1 || !ok2 {
		return models.Unavailable()
	}
	if d == 0 {
		return models.Known(0)
	}
	return known2(n / d * scale)
}

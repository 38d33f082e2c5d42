// Package metrics derives dashboard KPIs from combined daily and adset rows
// and serves paginated reads over stored days.
package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/AngelCh415/moi-etl/internal/models"
)

// Thresholds are the minimum conversion rates (percent) of each tier.
type Thresholds struct {
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
	Average   float64 `yaml:"average"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 1.0, Good: 0.5, Average: 0.2}
}

func (t Thresholds) Tier(rate float64) models.Tier {
	switch {
	case rate >= t.Excellent:
		return models.TierExcellent
	case rate >= t.Good:
		return models.TierGood
	case rate >= t.Average:
		return models.TierAverage
	default:
		return models.TierPoor
	}
}

// ProcessOutputFiles computes the dashboard with the default tier thresholds.
func ProcessOutputFiles(top []models.IntegratedDailyMetrics, adset []models.AdsetMetricsRow, r *models.DateRange) models.DashboardData {
	return DefaultThresholds().Process(top, adset, r)
}

// Process is pure: unavailable or non-finite cells count as 0 in every sum.
func (t Thresholds) Process(top []models.IntegratedDailyMetrics, adset []models.AdsetMetricsRow, r *models.DateRange) models.DashboardData {
	d := models.DashboardData{
		DateRange: rangeLabel(top, r),
		Days:      len(top),
		Campaigns: []models.CampaignPerformance{},
	}
	for _, m := range top {
		if !m.ShopifyUsers.IsKnown() {
			d.UnavailableDays++
		}
		d.TotalUsers += m.ShopifyUsers.Or(0)
		d.TotalATC += m.ShopifyATC.Or(0)
		d.TotalCheckout += m.ShopifyReachedCheckout.Or(0)
		d.TotalSessions += m.ShopifySessions.Or(0)
		d.MetaSpend += m.MetaSpend.Or(0)
		d.GoogleSpend += m.GoogleSpend.Or(0)
	}
	d.TotalSpend = d.MetaSpend + d.GoogleSpend
	d.ConversionRate = Round2(percent(d.TotalCheckout, d.TotalSessions))
	d.CostPerUser = Round2(safeDiv(d.TotalSpend, d.TotalUsers))

	d.TotalUsers = Round2(d.TotalUsers)
	d.TotalATC = Round2(d.TotalATC)
	d.TotalCheckout = Round2(d.TotalCheckout)
	d.TotalSessions = Round2(d.TotalSessions)
	d.MetaSpend = Round2(d.MetaSpend)
	d.GoogleSpend = Round2(d.GoogleSpend)
	d.TotalSpend = Round2(d.TotalSpend)

	d.Campaigns = t.campaigns(adset)
	return d
}

// campaigns rolls Shopify adset rows up per UTM campaign. Rate is checkouts
// per session, like the dashboard total. Rows read back from CSV carry no
// session count and contribute their users instead, matching how Shopify
// parsing treats exports without a Sessions column.
func (t Thresholds) campaigns(adset []models.AdsetMetricsRow) []models.CampaignPerformance {
	shopify := lo.Filter(adset, func(r models.AdsetMetricsRow, _ int) bool {
		return r.Platform == models.PlatformShopify && strings.TrimSpace(r.Campaign) != ""
	})
	byCampaign := lo.GroupBy(shopify, func(r models.AdsetMetricsRow) string { return r.Campaign })

	out := make([]models.CampaignPerformance, 0, len(byCampaign))
	for name, rows := range byCampaign {
		var p models.CampaignPerformance
		p.Campaign = name
		for _, r := range rows {
			p.Users += r.Users.Or(0)
			p.ATC += r.ATC.Or(0)
			p.Checkouts += r.ReachedCheckout.Or(0)
			p.Sessions += r.Sessions.Or(r.Users.Or(0))
		}
		p.Sessions = Round2(p.Sessions)
		p.ConversionRate = Round2(percent(p.Checkouts, p.Sessions))
		p.Tier = t.Tier(p.ConversionRate)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConversionRate != out[j].ConversionRate {
			return out[i].ConversionRate > out[j].ConversionRate
		}
		return out[i].Campaign < out[j].Campaign
	})
	return out
}

func rangeLabel(top []models.IntegratedDailyMetrics, r *models.DateRange) string {
	if r != nil {
		return r.Label()
	}
	if len(top) == 0 {
		return ""
	}
	first, last := top[0].Date, top[len(top)-1].Date
	if first == last {
		return first
	}
	return first + " to " + last
}

func percent(num, den float64) float64 { return safeDiv(num, den) * 100 }

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) {
		return 0
	}
	return num / den
}

func Round2(f float64) float64 { return math.Round(f*100) / 100 }
func Round3(f float64) float64 { return math.Round(f*1000) / 1000 }

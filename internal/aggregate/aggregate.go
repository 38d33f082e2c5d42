// Package aggregate buckets platform records into one metric row per day of
// a date range.
package aggregate

import (
	"log/slog"
	"time"

	"github.com/AngelCh415/moi-etl/internal/dates"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

// Legacy spellings of a Shopify "Day" cell still accepted after ISO.
var legacyDayLayouts = []string{"Jan 2, 2006", "01/02/2006"}

type Options struct {
	// QualifySeconds is the average session duration a row must exceed for
	// its traffic to count as engaged.
	QualifySeconds float64
	// PageviewThreshold is the pageviews-per-visitor a row must exceed for
	// the "above 5 page views" metric.
	PageviewThreshold float64
}

func DefaultOptions() Options {
	return Options{QualifySeconds: 60, PageviewThreshold: 5}
}

type Aggregator struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) *Aggregator {
	return &Aggregator{opts: opts, log: log}
}

// ProcessMetaByDay spreads Meta's window total evenly over the range. The
// export has no daily split, so every day gets totalSpend/dayCount and the
// same mean CPM and CTR.
func (a *Aggregator) ProcessMetaByDay(recs []models.MetaRecord, r models.DateRange) []models.DailyAdsMetric {
	var t adTotals
	for _, rec := range recs {
		t.add(rec.Campaign, rec.Spend, rec.CPM, rec.CTR)
	}
	return t.distribute(models.PlatformMeta, r)
}

func (a *Aggregator) ProcessGoogleByDay(recs []models.GoogleRecord, r models.DateRange) []models.DailyAdsMetric {
	var t adTotals
	for _, rec := range recs {
		t.add(rec.Campaign, rec.Cost, rec.CPM, rec.CTR)
	}
	return t.distribute(models.PlatformGoogle, r)
}

type adTotals struct {
	n         int
	spend     float64
	cpm       float64
	ctr       float64
	campaigns map[string]struct{}
}

func (t *adTotals) add(campaign string, spend, cpm, ctr float64) {
	if t.campaigns == nil {
		t.campaigns = map[string]struct{}{}
	}
	t.n++
	t.spend += spend
	t.cpm += cpm
	t.ctr += ctr
	t.campaigns[campaign] = struct{}{}
}

func (t adTotals) distribute(p models.Platform, r models.DateRange) []models.DailyAdsMetric {
	out := make([]models.DailyAdsMetric, 0, len(r.FormattedDates))
	var daily, cpm, ctr float64
	if r.DayCount > 0 {
		daily = t.spend / float64(r.DayCount)
	}
	if t.n > 0 {
		cpm = t.cpm / float64(t.n)
		ctr = t.ctr / float64(t.n)
	}
	for _, d := range r.FormattedDates {
		out = append(out, models.DailyAdsMetric{
			Date:          d,
			Platform:      p,
			TotalSpend:    daily,
			AvgCPM:        cpm,
			AvgCTR:        ctr,
			CampaignCount: len(t.campaigns),
		})
	}
	return out
}

// ProcessShopifyByDay sums the rows dated on each day. A day with no
// matching row is computed over all rows instead and every metric is then
// marked unavailable, so the inflated fallback never reads as real data.
func (a *Aggregator) ProcessShopifyByDay(recs []models.ShopifyRecord, r models.DateRange) []models.DailyShopifyMetric {
	out := make([]models.DailyShopifyMetric, 0, len(r.FormattedDates))
	for _, iso := range r.FormattedDates {
		day, _ := time.Parse(dates.ISOLayout, iso)
		var t Totals
		matched := 0
		for _, rec := range recs {
			if sameDay(rec, iso, day) {
				t.Add(rec, a.opts)
				matched++
			}
		}
		if matched == 0 {
			var fb Totals
			for _, rec := range recs {
				fb.Add(rec, a.opts)
			}
			utils.ShopifyDayFallbacks.Inc()
			a.log.Warn("no shopify rows for day, metrics unavailable",
				slog.String("date", iso),
				slog.Int("rows", len(recs)),
				slog.Float64("fallback_users", fb.Visitors))
			out = append(out, unavailableDay(iso))
			continue
		}
		out = append(out, t.Daily(iso))
	}
	return out
}

func sameDay(rec models.ShopifyRecord, iso string, day time.Time) bool {
	if rec.Day == iso {
		return true
	}
	if rec.DayRaw == "" {
		return false
	}
	for _, layout := range legacyDayLayouts {
		if rec.DayRaw == day.Format(layout) {
			return true
		}
	}
	return false
}

func unavailableDay(iso string) models.DailyShopifyMetric {
	u := models.Unavailable()
	return models.DailyShopifyMetric{
		Date:                    iso,
		TotalUsers:              u,
		TotalATC:                u,
		TotalReachedCheckout:    u,
		TotalSessions:           u,
		SessionDuration:         u,
		UsersAbove1Min:          u,
		ATCAbove1Min:            u,
		CheckoutAbove1Min:       u,
		UsersAbove5PagesAnd1Min: u,
		Pageviews:               u,
		Fallback:                true,
	}
}

// Totals accumulates Shopify rows. It backs both the per-day metrics and the
// UTM pivot.
type Totals struct {
	Rows                    int
	Visitors                float64
	Sessions                float64
	CartAdds                float64
	Checkouts               float64
	Pageviews               float64
	WeightedDuration        float64 // sum of duration × visitors
	UsersAbove1Min          float64
	ATCAbove1Min            float64
	CheckoutAbove1Min       float64
	UsersAbove5PagesAnd1Min float64
}

func (t *Totals) Add(r models.ShopifyRecord, o Options) {
	t.Rows++
	t.Visitors += r.Visitors
	t.Sessions += r.Sessions
	t.CartAdds += r.CartAdds
	t.Checkouts += r.Checkouts
	t.Pageviews += r.Pageviews
	t.WeightedDuration += r.Duration * r.Visitors
	if r.Duration <= o.QualifySeconds {
		return
	}
	t.UsersAbove1Min += r.Visitors
	if r.CartAdds > 0 {
		t.ATCAbove1Min += r.CartAdds
	}
	if r.Checkouts > 0 {
		t.CheckoutAbove1Min += r.Checkouts
	}
	if r.Visitors > 0 && r.Pageviews/r.Visitors > o.PageviewThreshold {
		t.UsersAbove5PagesAnd1Min += r.Visitors
	}
}

// AvgDuration weights each row's average by its visitors.
func (t Totals) AvgDuration() float64 {
	if t.Visitors == 0 {
		return 0
	}
	return t.WeightedDuration / t.Visitors
}

func (t Totals) Daily(iso string) models.DailyShopifyMetric {
	return models.DailyShopifyMetric{
		Date:                    iso,
		TotalUsers:              models.Known(t.Visitors),
		TotalATC:                models.Known(t.CartAdds),
		TotalReachedCheckout:    models.Known(t.Checkouts),
		TotalSessions:           models.Known(t.Sessions),
		SessionDuration:         models.Known(t.AvgDuration()),
		UsersAbove1Min:          models.Known(t.UsersAbove1Min),
		ATCAbove1Min:            models.Known(t.ATCAbove1Min),
		CheckoutAbove1Min:       models.Known(t.CheckoutAbove1Min),
		UsersAbove5PagesAnd1Min: models.Known(t.UsersAbove5PagesAnd1Min),
		Pageviews:               models.Known(t.Pageviews),
	}
}

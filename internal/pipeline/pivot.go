package pipeline

import (
	"github.com/samber/lo"

	"github.com/AngelCh415/moi-etl/internal/aggregate"
	"github.com/AngelCh415/moi-etl/internal/metrics"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

const keySep = "|||"

func coverageKey(campaign, adset string) string { return campaign + keySep + adset }

// BuildPivot groups Shopify rows by (UTM campaign, UTM term) in first-seen
// order. Session duration is weighted by visitors.
func BuildPivot(recs []models.ShopifyRecord, opts aggregate.Options) []models.PivotRow {
	var order []string
	groups := map[string]*pivotGroup{}
	for _, r := range recs {
		k := coverageKey(r.Campaign, r.Term)
		g, ok := groups[k]
		if !ok {
			g = &pivotGroup{campaign: r.Campaign, term: r.Term}
			groups[k] = g
			order = append(order, k)
		}
		g.t.Add(r, opts)
	}
	out := make([]models.PivotRow, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k].row())
	}
	return out
}

type pivotGroup struct {
	campaign, term string
	t              aggregate.Totals
}

func (g *pivotGroup) row() models.PivotRow {
	return models.PivotRow{
		Campaign:                g.campaign,
		Term:                    g.term,
		Visitors:                g.t.Visitors,
		Sessions:                g.t.Sessions,
		CartAdds:                g.t.CartAdds,
		Checkouts:               g.t.Checkouts,
		Pageviews:               g.t.Pageviews,
		AvgSessionDuration:      g.t.AvgDuration(),
		UsersAbove1Min:          g.t.UsersAbove1Min,
		ATCAbove1Min:            g.t.ATCAbove1Min,
		CheckoutAbove1Min:       g.t.CheckoutAbove1Min,
		UsersAbove5PagesAnd1Min: g.t.UsersAbove5PagesAnd1Min,
		Rows:                    g.t.Rows,
	}
}

// FilterShopifyByMetaCoverage keeps only pivot rows whose campaign and term
// exactly match a Meta campaign and ad set.
func FilterShopifyByMetaCoverage(pivot []models.PivotRow, meta []models.MetaRecord) []models.PivotRow {
	covered := lo.SliceToMap(meta, func(m models.MetaRecord) (string, struct{}) {
		return coverageKey(m.Campaign, m.AdSet), struct{}{}
	})
	kept := lo.Filter(pivot, func(p models.PivotRow, _ int) bool {
		_, ok := covered[coverageKey(p.Campaign, p.Term)]
		return ok
	})
	utils.CoverageDropped.Add(float64(len(pivot) - len(kept)))
	return kept
}

// BuildAdsetRows emits rows per platform with no join between them. Cells a
// platform does not report stay unavailable.
func BuildAdsetRows(r models.DateRange, meta []models.MetaRecord, google []models.GoogleRecord, pivot []models.PivotRow) []models.AdsetMetricsRow {
	label := r.Label()
	out := make([]models.AdsetMetricsRow, 0, len(meta)+len(google)+len(pivot))
	for _, m := range meta {
		out = append(out, models.AdsetMetricsRow{
			Date:        label,
			Campaign:    m.Campaign,
			AdSet:       m.AdSet,
			Platform:    models.PlatformMeta,
			Spend:       known2(m.Spend),
			Impressions: known2(m.Impressions),
			CTR:         known2(m.CTR),
			CPM:         known2(m.CPM),
		})
	}
	for _, g := range google {
		out = append(out, models.AdsetMetricsRow{
			Date:        label,
			Campaign:    g.Campaign,
			AdSet:       g.Campaign,
			Platform:    models.PlatformGoogle,
			Spend:       known2(g.Cost),
			Impressions: known2(g.Impressions),
			CTR:         known2(g.CTR),
			CPM:         known2(g.CPM),
		})
	}
	for _, p := range pivot {
		out = append(out, models.AdsetMetricsRow{
			Date:                    label,
			Campaign:                p.Campaign,
			AdSet:                   p.Term,
			Platform:                models.PlatformShopify,
			Users:                   known2(p.Visitors),
			ATC:                     known2(p.CartAdds),
			ReachedCheckout:         known2(p.Checkouts),
			SessionDuration:         known2(p.AvgSessionDuration),
			UsersAbove1Min:          known2(p.UsersAbove1Min),
			ATCAbove1Min:            known2(p.ATCAbove1Min),
			CheckoutAbove1Min:       known2(p.CheckoutAbove1Min),
			Pageviews:               known2(p.Pageviews),
			UsersAbove5PagesAnd1Min: known2(p.UsersAbove5PagesAnd1Min),
			Sessions:                known2(p.Sessions),
		})
	}
	return out
}

func known2(f float64) models.Value { return models.Known(metrics.Round2(f)) }

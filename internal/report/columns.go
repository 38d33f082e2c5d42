// Package report writes and reads the dashboard's Top Level Daily and Adset
// Level documents. Columns are positional: readers never match headers, so
// the order below is part of the format.
package report

import (
	"time"

	"github.com/AngelCh415/moi-etl/internal/models"
)

const (
	TopLevelTitle = "Top Level Daily"
	AdsetTitle    = "Adset Level"

	preambleRows = 3
)

var TopLevelHeaders = []string{
	"Date",
	"Meta Spend",
	"Meta CTR",
	"Meta CPM",
	"Google Spend",
	"Google CTR",
	"Google CPM",
	"Shopify Total Users",
	"Shopify Total ATC",
	"Shopify Total Reached Checkout",
	"Shopify Session Duration",
	"Users with Session above 1 min",
	"ATC with session above 1 min",
	"Reached Checkout with session above 1 min",
	"Users with Above 5 page views and above 1 min",
	"Shopify Sessions",
	"Total Spend",
	"Cost per User",
	"Conversion Rate",
}

var AdsetHeaders = []string{
	"Date",
	"Campaign name",
	"Ad Set Name",
	"Platform",
	"Amount Spent",
	"Impressions",
	"CTR",
	"CPM",
	"Users",
	"ATC",
	"Reached Checkout",
	"Session Duration",
	"Users with Session above 1 min",
	"ATC with session above 1 min",
	"Reached Checkout with session above 1 min",
	"Pageviews",
	"Users with Above 5 page views and above 1 min",
}

// Preamble fills the three rows written above the header.
type Preamble struct {
	DateRange   string
	GeneratedAt time.Time
}

func (p Preamble) rows(title string) [][]string {
	return [][]string{
		{title},
		{"Date Range", p.DateRange},
		{"Generated At", p.GeneratedAt.UTC().Format(time.RFC3339)},
	}
}

// topLevelValues lists the numeric cells after Date, in column order.
func topLevelValues(m *models.IntegratedDailyMetrics) []*models.Value {
	return []*models.Value{
		&m.MetaSpend, &m.MetaCTR, &m.MetaCPM,
		&m.GoogleSpend, &m.GoogleCTR, &m.GoogleCPM,
		&m.ShopifyUsers, &m.ShopifyATC, &m.ShopifyReachedCheckout, &m.ShopifySessionDuration,
		&m.UsersAbove1Min, &m.ATCAbove1Min, &m.CheckoutAbove1Min, &m.UsersAbove5PagesAnd1Min,
		&m.ShopifySessions, &m.TotalSpend, &m.CostPerUser, &m.ConversionRate,
	}
}

// adsetValues lists the numeric cells after Date, Campaign, Ad Set, Platform.
func adsetValues(r *models.AdsetMetricsRow) []*models.Value {
	return []*models.Value{
		&r.Spend, &r.Impressions, &r.CTR, &r.CPM,
		&r.Users, &r.ATC, &r.ReachedCheckout, &r.SessionDuration,
		&r.UsersAbove1Min, &r.ATCAbove1Min, &r.CheckoutAbove1Min,
		&r.Pageviews, &r.UsersAbove5PagesAnd1Min,
	}
}

const adsetTextColumns = 4

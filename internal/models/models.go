package models

import (
	"time"
)

type Platform string

const (
	PlatformMeta    Platform = "Meta"
	PlatformGoogle  Platform = "Google"
	PlatformShopify Platform = "Shopify"
)

// RawRecord is one CSV row keyed by its header cell, exactly as exported.
type RawRecord map[string]string

type NormalizedDate struct {
	ISO      string `json:"iso"`
	Original string `json:"original"`
	Source   string `json:"source"`
	Degraded bool   `json:"degraded,omitempty"`
}

// DateRange is an inclusive span of civil dates. Start and End are midnight UTC
// values carrying the calendar fields of the detected dates.
type DateRange struct {
	Start          time.Time `json:"start_date"`
	End            time.Time `json:"end_date"`
	DayCount       int       `json:"day_count"`
	FormattedDates []string  `json:"formatted_dates"`
	Degraded       bool      `json:"degraded,omitempty"`
	Sources        []string  `json:"sources,omitempty"`
}

func (r DateRange) StartISO() string { return r.Start.Format("2006-01-02") }
func (r DateRange) EndISO() string   { return r.End.Format("2006-01-02") }

// Label is the single date for one-day ranges and "start to end" otherwise.
func (r DateRange) Label() string {
	if r.DayCount <= 1 {
		return r.StartISO()
	}
	return r.StartISO() + " to " + r.EndISO()
}

func (r DateRange) Contains(iso string) bool {
	return iso >= r.StartISO() && iso <= r.EndISO()
}

type MetaRecord struct {
	Campaign       string    `json:"campaign"`
	AdSet          string    `json:"adset"`
	Spend          float64   `json:"spend"`
	CPM            float64   `json:"cpm"`
	CTR            float64   `json:"ctr"`
	Impressions    float64   `json:"impressions"`
	ReportingStart string    `json:"reporting_start"`
	ReportingEnd   string    `json:"reporting_end"`
	Raw            RawRecord `json:"raw,omitempty"`
}

type GoogleRecord struct {
	Campaign    string    `json:"campaign"`
	Cost        float64   `json:"cost"`
	CPM         float64   `json:"cpm"`
	CTR         float64   `json:"ctr"`
	Impressions float64   `json:"impressions"`
	Clicks      float64   `json:"clicks"`
	Day         string    `json:"day"`
	Raw         RawRecord `json:"raw,omitempty"`
}

type ShopifyRecord struct {
	Day       string    `json:"day"` // ISO once normalized, empty when the row had no date
	DayRaw    string    `json:"day_raw"`
	Campaign  string    `json:"campaign"`
	Term      string    `json:"term"`
	Visitors  float64   `json:"visitors"`
	Sessions  float64   `json:"sessions"`
	CartAdds  float64   `json:"cart_adds"`
	Checkouts float64   `json:"checkouts"`
	Duration  float64   `json:"duration"` // average session duration in seconds
	Pageviews float64   `json:"pageviews"`
	Raw       RawRecord `json:"raw,omitempty"`
}

type DailyAdsMetric struct {
	Date          string   `json:"date"`
	Platform      Platform `json:"platform"`
	TotalSpend    float64  `json:"total_spend"`
	AvgCPM        float64  `json:"avg_cpm"`
	AvgCTR        float64  `json:"avg_ctr"`
	CampaignCount int      `json:"campaign_count"`
}

type DailyShopifyMetric struct {
	Date                    string `json:"date"`
	TotalUsers              Value  `json:"total_users"`
	TotalATC                Value  `json:"total_atc"`
	TotalReachedCheckout    Value  `json:"total_reached_checkout"`
	TotalSessions           Value  `json:"total_sessions"`
	SessionDuration         Value  `json:"session_duration"`
	UsersAbove1Min          Value  `json:"users_above_1_min"`
	ATCAbove1Min            Value  `json:"atc_above_1_min"`
	CheckoutAbove1Min       Value  `json:"checkout_above_1_min"`
	UsersAbove5PagesAnd1Min Value  `json:"users_above_5_pages_and_1_min"`
	Pageviews               Value  `json:"pageviews"`
	Fallback                bool   `json:"fallback,omitempty"`
}

type IntegratedDailyMetrics struct {
	Date                    string `json:"date"`
	MetaSpend               Value  `json:"meta_spend"`
	MetaCTR                 Value  `json:"meta_ctr"`
	MetaCPM                 Value  `json:"meta_cpm"`
	GoogleSpend             Value  `json:"google_spend"`
	GoogleCTR               Value  `json:"google_ctr"`
	GoogleCPM               Value  `json:"google_cpm"`
	ShopifyUsers            Value  `json:"shopify_total_users"`
	ShopifyATC              Value  `json:"shopify_total_atc"`
	ShopifyReachedCheckout  Value  `json:"shopify_total_reached_checkout"`
	ShopifySessionDuration  Value  `json:"shopify_session_duration"`
	UsersAbove1Min          Value  `json:"users_above_1_min"`
	ATCAbove1Min            Value  `json:"atc_above_1_min"`
	CheckoutAbove1Min       Value  `json:"checkout_above_1_min"`
	UsersAbove5PagesAnd1Min Value  `json:"users_above_5_pages_and_1_min"`
	ShopifySessions         Value  `json:"shopify_sessions"`
	TotalSpend              Value  `json:"total_spend"`
	CostPerUser             Value  `json:"cost_per_user"`
	ConversionRate          Value  `json:"conversion_rate"`
}

type AdsetMetricsRow struct {
	Date                    string   `json:"date"`
	Campaign                string   `json:"campaign"`
	AdSet                   string   `json:"adset"`
	Platform                Platform `json:"platform"`
	Spend                   Value    `json:"spend"`
	Impressions             Value    `json:"impressions"`
	CTR                     Value    `json:"ctr"`
	CPM                     Value    `json:"cpm"`
	Users                   Value    `json:"users"`
	ATC                     Value    `json:"atc"`
	ReachedCheckout         Value    `json:"reached_checkout"`
	SessionDuration         Value    `json:"session_duration"`
	UsersAbove1Min          Value    `json:"users_above_1_min"`
	ATCAbove1Min            Value    `json:"atc_above_1_min"`
	CheckoutAbove1Min       Value    `json:"checkout_above_1_min"`
	Pageviews               Value    `json:"pageviews"`
	UsersAbove5PagesAnd1Min Value    `json:"users_above_5_pages_and_1_min"`
	// Sessions is not one of the exported columns; rows read back from CSV
	// leave it unavailable.
	Sessions                Value    `json:"sessions"`
}

// PivotRow is the Shopify traffic of one (UTM campaign, UTM term) pair.
type PivotRow struct {
	Campaign                string  `json:"campaign"`
	Term                    string  `json:"term"`
	Visitors                float64 `json:"visitors"`
	Sessions                float64 `json:"sessions"`
	CartAdds                float64 `json:"cart_adds"`
	Checkouts               float64 `json:"checkouts"`
	Pageviews               float64 `json:"pageviews"`
	AvgSessionDuration      float64 `json:"avg_session_duration"`
	UsersAbove1Min          float64 `json:"users_above_1_min"`
	ATCAbove1Min            float64 `json:"atc_above_1_min"`
	CheckoutAbove1Min       float64 `json:"checkout_above_1_min"`
	UsersAbove5PagesAnd1Min float64 `json:"users_above_5_pages_and_1_min"`
	Rows                    int     `json:"rows"`
}

type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierAverage   Tier = "average"
	TierPoor      Tier = "poor"
)

type CampaignPerformance struct {
	Campaign       string  `json:"campaign"`
	Users          float64 `json:"users"`
	ATC            float64 `json:"atc"`
	Sessions       float64 `json:"sessions"`
	Checkouts      float64 `json:"checkouts"`
	ConversionRate float64 `json:"conversion_rate"`
	Tier           Tier    `json:"tier"`
}

type DashboardData struct {
	DateRange       string                `json:"date_range"`
	Days            int                   `json:"days"`
	UnavailableDays int                   `json:"unavailable_days"`
	TotalUsers      float64               `json:"total_users"`
	TotalATC        float64               `json:"total_atc"`
	TotalCheckout   float64               `json:"total_checkout"`
	TotalSessions   float64               `json:"total_sessions"`
	MetaSpend       float64               `json:"meta_spend"`
	GoogleSpend     float64               `json:"google_spend"`
	TotalSpend      float64               `json:"total_spend"`
	ConversionRate  float64               `json:"conversion_rate"`
	CostPerUser     float64               `json:"cost_per_user"`
	Campaigns       []CampaignPerformance `json:"campaigns"`
}

type DailyDataEntry struct {
	Date       string                 `json:"date"`
	TopLevel   IntegratedDailyMetrics `json:"topLevel"`
	Adset      []AdsetMetricsRow      `json:"adset"`
	UploadedAt time.Time              `json:"uploadedAt"`
	RunID      string                 `json:"runId,omitempty"`
}

type CumulativeData struct {
	DailyEntries map[string]DailyDataEntry `json:"dailyEntries"`
	LastUpdated  time.Time                 `json:"lastUpdated"`
	Version      int                       `json:"version"`
}

package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/moi-etl/internal/config"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/report"
	"github.com/AngelCh415/moi-etl/internal/store"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

const (
	metaCSV = `Campaign name,Ad set name,Amount spent (INR),"CPM (cost per 1,000 impressions)",CTR (link click-through rate),Reporting starts,Reporting ends
CampaignA,AdsetX,300,10,2,2025-09-10,2025-09-12
`
	shopifyCSV = `Day,UTM campaign,UTM term,Online store visitors,Sessions,Sessions with cart additions,Sessions that reached checkout,Average session duration,Pageviews
2025-09-10,CampaignA,AdsetX,10,20,2,1,100,80
2025-09-10,CampaignA,AdsetY,40,40,0,0,50,40
2025-09-11,CampaignA,AdsetX,5,10,1,1,30,5
`
	shopifyName = "shopify 2025-09-10 to 2025-09-12.csv"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newProcessor(t *testing.T, cfg config.Config) (*Processor, store.Storage) {
	t.Helper()
	st := store.NewMemoryStore()
	return New(st, nil, quiet(), cfg), st
}

func testFiles() ingest.Files {
	return ingest.Files{
		Meta:    &ingest.SourceFile{Name: "meta.csv", Content: []byte(metaCSV)},
		Shopify: &ingest.SourceFile{Name: shopifyName, Content: []byte(shopifyCSV)},
	}
}

func TestProcessRequiresShopify(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	_, err := p.ProcessAllInputFiles(context.Background(), ingest.Files{
		Meta: &ingest.SourceFile{Name: "meta.csv", Content: []byte(metaCSV)},
	}, false)
	assert.ErrorIs(t, err, ErrShopifyRequired)
}

func TestProcessAllInputFiles(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	res, err := p.ProcessAllInputFiles(context.Background(), testFiles(), false)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"2025-09-10", "2025-09-11", "2025-09-12"}, res.DateRange.FormattedDates)
	require.Len(t, res.DailyMetrics, 3)

	d10 := res.DailyMetrics[0]
	assert.Equal(t, models.Known(100), d10.MetaSpend)
	assert.Equal(t, models.Known(10), d10.MetaCPM)
	assert.Equal(t, models.Known(2), d10.MetaCTR)
	assert.Equal(t, models.Known(0), d10.GoogleSpend, "absent platform reads as zero")
	assert.Equal(t, models.Known(50), d10.ShopifyUsers)
	assert.Equal(t, models.Known(60), d10.ShopifySessions)
	assert.Equal(t, models.Known(60), d10.ShopifySessionDuration)
	assert.Equal(t, models.Known(100), d10.TotalSpend)
	assert.Equal(t, models.Known(2), d10.CostPerUser)
	assert.Equal(t, models.Known(1.67), d10.ConversionRate)

	d11 := res.DailyMetrics[1]
	assert.Equal(t, models.Known(10), d11.ConversionRate)
	assert.Equal(t, models.Known(20), d11.CostPerUser)

	d12 := res.DailyMetrics[2]
	assert.False(t, d12.ShopifyUsers.IsKnown())
	assert.False(t, d12.ConversionRate.IsKnown())
	assert.False(t, d12.CostPerUser.IsKnown())
	assert.Equal(t, models.Known(100), d12.MetaSpend)

	require.Len(t, res.Pivot, 1, "AdsetY has no Meta ad set")
	assert.Equal(t, "AdsetX", res.Pivot[0].Term)

	require.Len(t, res.AdsetData, 2)
	assert.Equal(t, models.PlatformMeta, res.AdsetData[0].Platform)
	assert.Equal(t, models.PlatformShopify, res.AdsetData[1].Platform)
	assert.Equal(t, "2025-09-10 to 2025-09-12", res.AdsetData[1].Date)
	assert.Equal(t, models.Known(15), res.AdsetData[1].Users)
	assert.Equal(t, models.Known(76.67), res.AdsetData[1].SessionDuration)
	assert.False(t, res.AdsetData[0].Users.IsKnown())

	db := res.Dashboard
	assert.Equal(t, 3, db.Days)
	assert.Equal(t, 1, db.UnavailableDays)
	assert.Equal(t, 55.0, db.TotalUsers)
	assert.Equal(t, 70.0, db.TotalSessions)
	assert.Equal(t, 300.0, db.MetaSpend)
	assert.Equal(t, 300.0, db.TotalSpend)
	assert.Equal(t, 2.86, db.ConversionRate)
	assert.Equal(t, 5.45, db.CostPerUser)
	require.Len(t, db.Campaigns, 1)
	assert.Equal(t, models.TierExcellent, db.Campaigns[0].Tier)
	assert.Equal(t, 30.0, db.Campaigns[0].Sessions)
	assert.Equal(t, 6.67, db.Campaigns[0].ConversionRate, "2 checkouts over 30 sessions")

	names := make([]string, 0, len(res.Steps))
	for _, s := range res.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"detect_range", "parse_shopify", "parse_ads", "aggregate", "combine", "adset", "dashboard"}, names)
}

func TestProcessRefreshesCaches(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	ctx := context.Background()
	res, err := p.ProcessAllInputFiles(ctx, testFiles(), false)
	require.NoError(t, err)

	out, ok, err := p.OutputCache().Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.RunID, out.RunID)
	assert.Empty(t, cmp.Diff(res.DailyMetrics, out.Daily))

	top, _, ok, err := p.ServerCache().TopLevel(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	parsed, err := report.ParseTopLevelCSV(top)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(res.DailyMetrics, parsed))

	adset, _, ok, err := p.ServerCache().Adset(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	rows, err := report.ParseAdsetCSV(adset)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(res.AdsetData, rows, cmpopts.IgnoreFields(models.AdsetMetricsRow{}, "Sessions")))
}

func TestConfigurableLogicUsesTunables(t *testing.T) {
	cfg := config.Default()
	cfg.Tunables.QualifySeconds = 20

	p, _ := newProcessor(t, cfg)
	def, err := p.ProcessAllInputFiles(context.Background(), testFiles(), false)
	require.NoError(t, err)
	tuned, err := p.ProcessAllInputFiles(context.Background(), testFiles(), true)
	require.NoError(t, err)

	assert.Equal(t, models.Known(0), def.DailyMetrics[1].UsersAbove1Min)
	assert.Equal(t, models.Known(5), tuned.DailyMetrics[1].UsersAbove1Min)
}

func TestStoreCumulativeIsIdempotentPerDay(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := p.ProcessAllInputFiles(ctx, testFiles(), false)
		require.NoError(t, err)
		require.NoError(t, p.StoreCumulative(ctx, res))
	}
	entries, err := p.Cumulative().Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2025-09-10", entries[0].Date)
	assert.Empty(t, entries[0].Adset, "multi-day runs keep adset rows off daily entries")
}

func TestExportDaySignsPayload(t *testing.T) {
	var got []models.DailyDataEntry
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("X-Signature") != Sign(body, "s3cret") {
			http.Error(w, "bad signature", http.StatusUnauthorized)
			return
		}
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer sink.Close()

	cfg := config.Default()
	cfg.Sink = config.Sink{URL: sink.URL, Secret: "s3cret"}
	p, _ := newProcessor(t, cfg)
	ctx := context.Background()

	res, err := p.ProcessAllInputFiles(ctx, testFiles(), false)
	require.NoError(t, err)
	require.NoError(t, p.StoreCumulative(ctx, res))

	n, err := p.ExportDay(ctx, "2025-09-11")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-09-11", got[0].Date)

	n, err = p.ExportDay(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportDayNeedsSink(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	_, err := p.ExportDay(context.Background(), "2025-09-10")
	assert.ErrorIs(t, err, ErrSinkNotConfigured)
}

func TestParsedRecordsCountedOncePerRun(t *testing.T) {
	p, _ := newProcessor(t, config.Default())
	meta := utils.RecordsParsed.WithLabelValues(string(models.PlatformMeta))
	shopify := utils.RecordsParsed.WithLabelValues(string(models.PlatformShopify))
	beforeMeta, beforeShopify := testutil.ToFloat64(meta), testutil.ToFloat64(shopify)

	files := testFiles()
	files.Shopify.Name = "shopify.csv" // no dates in the name: detection samples the rows
	_, err := p.ProcessAllInputFiles(context.Background(), files, false)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(meta)-beforeMeta)
	assert.Equal(t, 3.0, testutil.ToFloat64(shopify)-beforeShopify)
}

package daterange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/moi-etl/internal/dates"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/models"
)

const (
	metaCSV = "Campaign name,Ad set name,Amount spent (INR),Reporting starts,Reporting ends\n" +
		"Summer,Adset A,100,2025-09-10,2025-09-12\n"
	googleCSV = "Campaign performance\n" +
		"\"September 10, 2025 - September 29, 2025\"\n" +
		"Campaign,Cost\n" +
		"Brand,50\n"
	shopifyCSV = "Day,UTM campaign,UTM term,Online store visitors\n" +
		"2025-09-11,Summer,Adset A,10\n" +
		"\"Sep 10, 2025\",Summer,Adset A,5\n"
	shopifyNoDates = "UTM campaign,UTM term,Online store visitors\nSummer,Adset A,10\n"
)

var fixedNow = time.Date(2025, 10, 1, 15, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Now = func() time.Time { return fixedNow }
	return d
}

func file(name, content string) *ingest.SourceFile {
	return &ingest.SourceFile{Name: name, Content: []byte(content)}
}

func TestDetectFromFilesUnionOfSources(t *testing.T) {
	r, err := newDetector().DetectFromFiles(context.Background(), ingest.Files{
		Meta:    file("meta.csv", metaCSV),
		Google:  file("google.csv", googleCSV),
		Shopify: file("shopify 2025-09-10 to 2025-09-23.csv", shopifyCSV),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-10", r.StartISO())
	assert.Equal(t, "2025-09-29", r.EndISO())
	assert.Equal(t, 20, r.DayCount)
	assert.False(t, r.Degraded)
	assert.ElementsMatch(t, []string{"Meta", "Google", "Shopify"}, r.Sources)
}

func TestDetectGoogleUsesEndDateOnly(t *testing.T) {
	r, err := newDetector().DetectFromFiles(context.Background(), ingest.Files{
		Google: file("google.csv", googleCSV),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.DayCount)
	assert.Equal(t, []string{"2025-09-29"}, r.FormattedDates)
}

func TestDetectShopifySamplesRowsWithoutFilenameDates(t *testing.T) {
	r, err := newDetector().DetectFromFiles(context.Background(), ingest.Files{
		Shopify: file("shopify.csv", shopifyCSV),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-09-10", "2025-09-11"}, r.FormattedDates)
}

func TestDetectFallbackLadder(t *testing.T) {
	d := newDetector()

	r, err := d.DetectFromFiles(context.Background(), ingest.Files{Shopify: file("shopify.csv", shopifyNoDates)})
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.Equal(t, []string{"2025-10-01"}, r.FormattedDates)

	r, err = d.DetectFromFiles(context.Background(), ingest.Files{})
	require.NoError(t, err)
	assert.True(t, r.Degraded)
	assert.Equal(t, 7, r.DayCount)
	assert.Equal(t, "2025-09-25", r.StartISO())
	assert.Equal(t, "2025-10-01", r.EndISO())
}

func TestDetectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDetector().DetectFromFiles(ctx, ingest.Files{Shopify: file("s.csv", shopifyCSV)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsolidateCoversEveryInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		var in []SourceRange
		for j := 0; j < 1+rng.Intn(4); j++ {
			s := base.AddDate(0, 0, rng.Intn(60))
			e := s.AddDate(0, 0, rng.Intn(30))
			in = append(in, SourceRange{Source: fmt.Sprint(j), Range: dates.NewDateRange(s, e)})
		}
		out, ok := Consolidate(in)
		require.True(t, ok)
		for _, r := range in {
			assert.False(t, out.Start.After(r.Range.Start))
			assert.False(t, out.End.Before(r.Range.End))
		}
		assert.Len(t, out.FormattedDates, out.DayCount)
	}

	_, ok := Consolidate(nil)
	assert.False(t, ok)
}

func shopifyDays(days ...string) []models.ShopifyRecord {
	out := make([]models.ShopifyRecord, len(days))
	for i, d := range days {
		out[i] = models.ShopifyRecord{Day: d}
	}
	return out
}

func TestDetectFromDataDominantDate(t *testing.T) {
	d := newDetector()
	days := make([]string, 0, 20)
	for i := 0; i < 19; i++ {
		days = append(days, "2025-09-10")
	}
	days = append(days, "2025-09-03")

	r := d.DetectFromData(nil, nil, shopifyDays(days...))
	assert.Equal(t, []string{"2025-09-10"}, r.FormattedDates)

	days[18] = "2025-09-12"
	r = d.DetectFromData(nil, nil, shopifyDays(days...))
	assert.Equal(t, "2025-09-03", r.StartISO())
	assert.Equal(t, "2025-09-12", r.EndISO())

	d.DominantThreshold = 0.9
	r = d.DetectFromData(nil, nil, shopifyDays(days...))
	assert.Equal(t, 1, r.DayCount)
}

func TestDetectFromDataMixesSources(t *testing.T) {
	r := newDetector().DetectFromData(
		[]models.MetaRecord{{ReportingStart: "2025-09-01", ReportingEnd: "2025-09-05"}},
		[]models.GoogleRecord{{Day: "Sep 7, 2025"}},
		nil,
	)
	assert.Equal(t, "2025-09-01", r.StartISO())
	assert.Equal(t, "2025-09-07", r.EndISO())
}

func TestDetectFromJSON(t *testing.T) {
	r, err := newDetector().DetectFromJSON(strings.NewReader(`{
		"meta": [{"campaign": "Summer", "reporting_start": "2025-09-01", "reporting_end": "2025-09-05"}],
		"google": [{"campaign": "Brand", "day": "Sep 7, 2025"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", r.StartISO())
	assert.Equal(t, "2025-09-07", r.EndISO())

	_, err = newDetector().DetectFromJSON(strings.NewReader(`{"shopify": "nope"}`))
	assert.Error(t, err)
}

package dates

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNormalizeKnownFormats(t *testing.T) {
	cases := map[string]string{
		"2025-09-10":           "2025-09-10",
		"2025-9-3":             "2025-09-03",
		"2025-09-10T13:45:00Z": "2025-09-10",
		"2025-09-10 23:59:59":  "2025-09-10",
		"09/10/2025":           "2025-09-10",
		"2025/09/10":           "2025-09-10",
		"September 10, 2025":   "2025-09-10",
		"Sep 10, 2025":         "2025-09-10",
		"sept 10 2025":         "2025-09-10",
		"10-09-2025":           "2025-09-10",
		`"2025-09-10"`:         "2025-09-10",
	}
	n := Normalizer{Log: quiet()}
	for in, want := range cases {
		got := n.Normalize(in, "test")
		assert.Equal(t, want, got.ISO, "input %q", in)
		assert.False(t, got.Degraded, "input %q", in)
		assert.Equal(t, in, got.Original)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := Normalizer{Log: quiet()}
	for _, in := range []string{"2025-01-31", "12/31/2024", "Feb 29, 2024", "01-03-2025"} {
		once := n.Normalize(in, "test").ISO
		twice := n.Normalize(once, "test").ISO
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeDegradesToToday(t *testing.T) {
	fixed := time.Date(2025, 9, 30, 22, 15, 0, 0, time.UTC)
	n := Normalizer{Now: func() time.Time { return fixed }, Log: quiet()}

	for _, in := range []string{"", "not a date", "02/30/2025"} {
		got := n.Normalize(in, "shopify")
		assert.True(t, got.Degraded, "input %q", in)
		assert.Equal(t, "2025-09-30", got.ISO, "input %q", in)
		assert.Equal(t, "shopify", got.Source)
	}
}

func TestNormalizeTimeKeepsCalendarFields(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, 9, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-09-10", NormalizeTime(late, "meta").ISO)
}

func TestParseRejectsImpossibleDates(t *testing.T) {
	_, ok := Parse("2025-02-30")
	assert.False(t, ok)
	_, ok = Parse("2025/13/01")
	assert.False(t, ok)
}

func TestExtractGoogleDateFromHeader(t *testing.T) {
	got, ok := ExtractGoogleDateFromHeader("September 10, 2025 - September 29, 2025")
	require.True(t, ok)
	assert.Equal(t, "2025-09-29", got)

	got, ok = ExtractGoogleDateFromHeader(`"Sep 1, 2025 – Sep 7, 2025"`)
	require.True(t, ok)
	assert.Equal(t, "2025-09-07", got)

	got, ok = ExtractGoogleDateFromHeader("Report for Sep 5, 2025")
	require.True(t, ok)
	assert.Equal(t, "2025-09-05", got)

	_, ok = ExtractGoogleDateFromHeader("Campaign performance")
	assert.False(t, ok)
}

func TestExtractShopifyDateFromFilename(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		ok         bool
	}{
		{"Sessions by UTM 2025-09-10 to 2025-09-23.csv", "2025-09-10", "2025-09-23", true},
		{"shopify_2025-09-10_to_2025-09-12.csv", "2025-09-10", "2025-09-12", true},
		{"shopify-2025-09-10.csv", "2025-09-10", "2025-09-10", true},
		{"shopify.csv", "", "", false},
	}
	for _, c := range cases {
		s, e, ok := ExtractShopifyDateFromFilename(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.start, s, c.name)
		assert.Equal(t, c.end, e, c.name)
	}
}

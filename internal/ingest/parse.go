package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/AngelCh415/moi-etl/internal/dates"
	"github.com/AngelCh415/moi-etl/internal/models"
)

var (
	ErrEmptyFile = errors.New("empty file")
	ErrNoHeader  = errors.New("no recognizable header row")
)

// SourceFile is one uploaded or downloaded export. Name matters: Shopify
// encodes its date range in the filename.
type SourceFile struct {
	Name    string
	Content []byte
}

// Files groups the three platform exports of a pipeline run. Only Shopify is
// required by the processor; nil means not supplied.
type Files struct {
	Shopify *SourceFile
	Meta    *SourceFile
	Google  *SourceFile
}

// ReadRows reads every CSV row, tolerating ragged rows and stray quotes.
func ReadRows(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// HeadLines returns the first n raw text lines of a file.
func HeadLines(content []byte, n int) []string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	lines := strings.SplitN(string(content), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// locateHeader finds the first row that satisfies the schema. Vendor
// preambles (report titles, date lines) before it are skipped.
func locateHeader(s Schema, rows [][]string) (Columns, int, error) {
	for i, row := range rows {
		if cols, ok := s.Resolve(row); ok {
			return cols, i, nil
		}
	}
	return Columns{}, -1, fmt.Errorf("%s: %w", s.Platform, ErrNoHeader)
}

// summaryScopes are the words vendors put after "Total" on a summary row.
var summaryScopes = []string{"account", "accounts", "campaign", "campaigns", "ad set", "ad sets", "results"}

// isTotalRow matches vendor summary rows ("Total", "Totals", "Total:
// Account", "Total - Campaigns") but not campaigns whose name merely
// starts with "total".
func isTotalRow(first string) bool {
	s := strings.ToLower(strings.TrimSpace(first))
	if s == "total" || s == "totals" || strings.HasPrefix(s, "total:") {
		return true
	}
	rest, ok := strings.CutPrefix(s, "total ")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "-") || strings.HasPrefix(rest, "(") {
		return true
	}
	for _, scope := range summaryScopes {
		if rest == scope {
			return true
		}
	}
	return false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func ParseMeta(f SourceFile) ([]models.MetaRecord, error) {
	rows, err := ReadRows(f.Content)
	if err != nil {
		return nil, fmt.Errorf("meta %s: %w", f.Name, err)
	}
	cols, at, err := locateHeader(MetaSchema, rows)
	if err != nil {
		return nil, err
	}
	var out []models.MetaRecord
	for _, row := range rows[at+1:] {
		campaign := cols.Get(row, FieldCampaign)
		if blank(row) || campaign == "" || isTotalRow(campaign) {
			continue
		}
		rec := models.MetaRecord{
			Campaign:       campaign,
			AdSet:          cols.Get(row, FieldAdSet),
			Spend:          cols.Number(row, FieldSpend),
			CPM:            cols.Number(row, FieldCPM),
			CTR:            cols.Number(row, FieldCTR),
			Impressions:    cols.Number(row, FieldImpressions),
			ReportingStart: cols.Get(row, FieldReportingStart),
			ReportingEnd:   cols.Get(row, FieldReportingEnd),
			Raw:            cols.Raw(row),
		}
		if rec.Impressions == 0 && rec.CPM > 0 {
			rec.Impressions = round0(rec.Spend / rec.CPM * 1000)
		}
		out = append(out, rec)
	}
	return out, nil
}

func ParseGoogle(f SourceFile) ([]models.GoogleRecord, error) {
	rows, err := ReadRows(f.Content)
	if err != nil {
		return nil, fmt.Errorf("google %s: %w", f.Name, err)
	}
	cols, at, err := locateHeader(GoogleSchema, rows)
	if err != nil {
		return nil, err
	}
	var out []models.GoogleRecord
	for _, row := range rows[at+1:] {
		campaign := cols.Get(row, FieldCampaign)
		if blank(row) || campaign == "" || isTotalRow(row[0]) || isTotalRow(campaign) {
			continue
		}
		rec := models.GoogleRecord{
			Campaign:    campaign,
			Cost:        cols.Number(row, FieldSpend),
			CPM:         cols.Number(row, FieldCPM),
			CTR:         cols.Number(row, FieldCTR),
			Impressions: cols.Number(row, FieldImpressions),
			Clicks:      cols.Number(row, FieldClicks),
			Day:         cols.Get(row, FieldDay),
			Raw:         cols.Raw(row),
		}
		if rec.Impressions == 0 && rec.CPM > 0 {
			rec.Impressions = round0(rec.Cost / rec.CPM * 1000)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseShopify keeps each row's date cell as exported in DayRaw; Day stays
// empty until NormalizeShopifyDays runs.
func ParseShopify(f SourceFile) ([]models.ShopifyRecord, error) {
	rows, err := ReadRows(f.Content)
	if err != nil {
		return nil, fmt.Errorf("shopify %s: %w", f.Name, err)
	}
	cols, at, err := locateHeader(ShopifySchema, rows)
	if err != nil {
		return nil, err
	}
	var out []models.ShopifyRecord
	for _, row := range rows[at+1:] {
		if blank(row) || isTotalRow(row[0]) {
			continue
		}
		visitors := cols.Number(row, FieldVisitors)
		sessions := visitors
		if cols.Has(FieldSessions) {
			sessions = cols.Number(row, FieldSessions)
		}
		out = append(out, models.ShopifyRecord{
			DayRaw:    cols.Get(row, FieldDay),
			Campaign:  cols.Get(row, FieldCampaign),
			Term:      cols.Get(row, FieldTerm),
			Visitors:  visitors,
			Sessions:  sessions,
			CartAdds:  cols.Number(row, FieldCartAdds),
			Checkouts: cols.Number(row, FieldCheckouts),
			Duration:  cols.Number(row, FieldDuration),
			Pageviews: cols.Number(row, FieldPageviews),
			Raw:       cols.Raw(row),
		})
	}
	return out, nil
}

// NormalizeShopifyDays fills Day with the canonical form of DayRaw. Rows
// without a date cell are left with an empty Day.
func NormalizeShopifyDays(recs []models.ShopifyRecord, n dates.Normalizer) []models.ShopifyRecord {
	out := make([]models.ShopifyRecord, len(recs))
	for i, r := range recs {
		if r.DayRaw != "" {
			r.Day = n.Normalize(r.DayRaw, string(models.PlatformShopify)).ISO
		}
		out[i] = r
	}
	return out
}

func round0(f float64) float64 { return float64(int64(f + 0.5)) }

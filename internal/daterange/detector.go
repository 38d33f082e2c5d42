// Package daterange infers the reporting window of a pipeline run from the
// platform exports, reconciling sources that disagree.
package daterange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/AngelCh415/moi-etl/internal/dates"
	"github.com/AngelCh415/moi-etl/internal/ingest"
	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

const (
	DefaultDominantThreshold = 0.95
	DefaultSampleRows        = 10
	googleHeaderLines        = 5
	fallbackDays             = 7
)

// SourceRange is the window one export claims to cover.
type SourceRange struct {
	Source string
	Range  models.DateRange
}

type Detector struct {
	Now func() time.Time
	Log *slog.Logger
	// DominantThreshold is the share of records one date must reach for
	// DetectFromData to collapse to that single day.
	DominantThreshold float64
	// SampleRows bounds how many Shopify rows are read when the filename
	// carries no dates.
	SampleRows int
}

func New(log *slog.Logger) *Detector {
	return &Detector{
		Now:               time.Now,
		Log:               log,
		DominantThreshold: DefaultDominantThreshold,
		SampleRows:        DefaultSampleRows,
	}
}

// DetectFromFiles never fails on bad content: sources that yield nothing are
// skipped and the fallback ladder applies. Only a cancelled context errors.
func (d *Detector) DetectFromFiles(ctx context.Context, files ingest.Files) (models.DateRange, error) {
	var found []SourceRange
	if files.Meta != nil {
		if r, ok := d.fromMeta(*files.Meta); ok {
			found = append(found, SourceRange{Source: string(models.PlatformMeta), Range: r})
		}
	}
	if err := ctx.Err(); err != nil {
		return models.DateRange{}, err
	}
	if files.Google != nil {
		if r, ok := d.fromGoogle(*files.Google); ok {
			found = append(found, SourceRange{Source: string(models.PlatformGoogle), Range: r})
		}
	}
	if err := ctx.Err(); err != nil {
		return models.DateRange{}, err
	}
	if files.Shopify != nil {
		if r, ok := d.fromShopify(*files.Shopify); ok {
			found = append(found, SourceRange{Source: string(models.PlatformShopify), Range: r})
		}
	}
	for _, f := range found {
		d.Log.Debug("detected source range",
			slog.String("source", f.Source),
			slog.String("start", f.Range.StartISO()),
			slog.String("end", f.Range.EndISO()))
	}
	return d.resolve(found, files.Shopify != nil), nil
}

func (d *Detector) fromMeta(f ingest.SourceFile) (models.DateRange, bool) {
	recs, err := ingest.ParseMeta(f)
	if err != nil || len(recs) == 0 {
		return models.DateRange{}, false
	}
	start, okS := dates.Parse(recs[0].ReportingStart)
	end, okE := dates.Parse(recs[0].ReportingEnd)
	switch {
	case okS && okE:
		return dates.NewDateRange(start, end), true
	case okS:
		return dates.SingleDay(start), true
	case okE:
		return dates.SingleDay(end), true
	}
	return models.DateRange{}, false
}

// fromGoogle uses only the end date of the header window, since Google
// totals are attributed to the last reporting day.
func (d *Detector) fromGoogle(f ingest.SourceFile) (models.DateRange, bool) {
	for _, line := range ingest.HeadLines(f.Content, googleHeaderLines) {
		if iso, ok := dates.ExtractGoogleDateFromHeader(line); ok {
			r, ok := dates.RangeFromISO(iso, iso)
			return r, ok
		}
	}
	return models.DateRange{}, false
}

func (d *Detector) fromShopify(f ingest.SourceFile) (models.DateRange, bool) {
	if start, end, ok := dates.ExtractShopifyDateFromFilename(f.Name); ok {
		return dates.RangeFromISO(start, end)
	}
	recs, err := ingest.ParseShopify(f)
	if err != nil {
		return models.DateRange{}, false
	}
	n := d.SampleRows
	if n <= 0 {
		n = DefaultSampleRows
	}
	var sampled []time.Time
	for _, r := range recs[:min(n, len(recs))] {
		if t, ok := dates.Parse(r.DayRaw); ok {
			sampled = append(sampled, t)
		}
	}
	if len(sampled) == 0 {
		return models.DateRange{}, false
	}
	first, last := span(sampled)
	return dates.NewDateRange(first, last), true
}

// Consolidate returns the union of the ranges: the earliest start through the
// latest end. ok is false for an empty input.
func Consolidate(ranges []SourceRange) (models.DateRange, bool) {
	if len(ranges) == 0 {
		return models.DateRange{}, false
	}
	starts := make([]time.Time, 0, len(ranges))
	ends := make([]time.Time, 0, len(ranges))
	var sources []string
	for _, r := range ranges {
		starts = append(starts, r.Range.Start)
		ends = append(ends, r.Range.End)
		sources = append(sources, r.Source)
	}
	first, _ := span(starts)
	_, last := span(ends)
	out := dates.NewDateRange(first, last)
	out.Sources = lo.Uniq(sources)
	return out, true
}

// resolve applies the fallback ladder when no source produced a range:
// today alone if Shopify data exists, else the last seven days.
func (d *Detector) resolve(found []SourceRange, haveShopify bool) models.DateRange {
	if r, ok := Consolidate(found); ok {
		return r
	}
	now := d.now()
	var r models.DateRange
	if haveShopify {
		utils.DateFallbacks.WithLabelValues("range_today").Inc()
		d.Log.Warn("no date range detected from any source, using today")
		r = dates.SingleDay(now)
	} else {
		utils.DateFallbacks.WithLabelValues("range_last_7_days").Inc()
		d.Log.Warn("no data to detect a date range from, using the last 7 days")
		r = dates.LastNDays(now, fallbackDays)
	}
	r.Degraded = true
	return r
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DetectFromData works on records that were already parsed. When one date
// covers at least DominantThreshold of all date values the range collapses
// to that day; otherwise it spans the unique dates seen.
func (d *Detector) DetectFromData(meta []models.MetaRecord, google []models.GoogleRecord, shopify []models.ShopifyRecord) models.DateRange {
	counts := map[string]int{}
	total := 0
	add := func(s string) {
		if t, ok := dates.Parse(s); ok {
			counts[t.Format(dates.ISOLayout)]++
			total++
		}
	}
	for _, r := range meta {
		add(r.ReportingStart)
		add(r.ReportingEnd)
	}
	for _, r := range google {
		add(r.Day)
	}
	for _, r := range shopify {
		if r.Day != "" {
			add(r.Day)
		} else {
			add(r.DayRaw)
		}
	}
	if total == 0 {
		return d.resolve(nil, len(shopify) > 0)
	}

	unique := lo.Keys(counts)
	sort.Strings(unique)
	threshold := d.DominantThreshold
	if threshold <= 0 {
		threshold = DefaultDominantThreshold
	}
	for _, iso := range unique {
		if float64(counts[iso])/float64(total) >= threshold {
			r, _ := dates.RangeFromISO(iso, iso)
			return r
		}
	}
	r, _ := dates.RangeFromISO(unique[0], unique[len(unique)-1])
	return r
}

// ParsedRecords is the JSON body accepted by DetectFromJSON: records that
// were parsed elsewhere, keyed by platform.
type ParsedRecords struct {
	Meta    []models.MetaRecord    `json:"meta"`
	Google  []models.GoogleRecord  `json:"google"`
	Shopify []models.ShopifyRecord `json:"shopify"`
}

// DetectFromJSON decodes ParsedRecords and runs DetectFromData on them.
func (d *Detector) DetectFromJSON(r io.Reader) (models.DateRange, error) {
	var recs ParsedRecords
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return models.DateRange{}, fmt.Errorf("decode parsed records: %w", err)
	}
	return d.DetectFromData(recs.Meta, recs.Google, recs.Shopify), nil
}

func span(ts []time.Time) (time.Time, time.Time) {
	first, last := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return first, last
}

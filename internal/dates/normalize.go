// Package dates turns the date spellings found in Meta, Google and Shopify
// exports into canonical YYYY-MM-DD strings and builds inclusive day ranges.
package dates

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/AngelCh415/moi-etl/internal/models"
	"github.com/AngelCh415/moi-etl/internal/utils"
)

const ISOLayout = "2006-01-02"

var (
	isoRe       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	mdySlashRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	ymdSlashRe  = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	monthNameRe = regexp.MustCompile(`^([A-Za-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})$`)
	dmyDashRe   = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Normalizer parses date strings. Now and Log are injectable for tests;
// zero values fall back to time.Now and slog.Default.
type Normalizer struct {
	Now func() time.Time
	Log *slog.Logger
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n Normalizer) log() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

// NormalizeToISO normalizes with the default clock and logger.
func NormalizeToISO(input, source string) models.NormalizedDate {
	return Normalizer{}.Normalize(input, source)
}

// NormalizeTime normalizes a time value using its own calendar fields.
func NormalizeTime(t time.Time, source string) models.NormalizedDate {
	return Normalizer{}.NormalizeTime(t, source)
}

// Normalize never fails. When nothing matches it returns today's date with
// Degraded set, and logs a warning.
func (n Normalizer) Normalize(input, source string) models.NormalizedDate {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(input), `"`))
	if d, ok := Parse(s); ok {
		return models.NormalizedDate{ISO: d.Format(ISOLayout), Original: input, Source: source}
	}
	utils.DateFallbacks.WithLabelValues("normalize").Inc()
	n.log().Warn("unparseable date, using current date",
		slog.String("input", input), slog.String("source", source))
	return models.NormalizedDate{
		ISO:      Civil(n.now()).Format(ISOLayout),
		Original: input,
		Source:   source,
		Degraded: true,
	}
}

func (n Normalizer) NormalizeTime(t time.Time, source string) models.NormalizedDate {
	return models.NormalizedDate{ISO: Civil(t).Format(ISOLayout), Original: t.String(), Source: source}
}

// Parse tries each known layout in priority order and returns the civil date.
// The first pattern that matches and forms a real calendar date wins.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		if d, ok := ymd(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := mdySlashRe.FindStringSubmatch(s); m != nil {
		if d, ok := ymd(m[3], m[1], m[2]); ok {
			return d, true
		}
	}
	if m := ymdSlashRe.FindStringSubmatch(s); m != nil {
		if d, ok := ymd(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := monthNameRe.FindStringSubmatch(s); m != nil {
		if mon, ok := monthNames[strings.ToLower(m[1])]; ok {
			if d, ok := ymd(m[3], strconv.Itoa(int(mon)), m[2]); ok {
				return d, true
			}
		}
	}
	if m := dmyDashRe.FindStringSubmatch(s); m != nil {
		if d, ok := ymd(m[3], m[2], m[1]); ok {
			return d, true
		}
	}
	if t, err := dateparse.ParseIn(s, time.Local); err == nil {
		return Civil(t), true
	}
	return time.Time{}, false
}

// Civil drops the time of day and location, keeping t's own calendar fields.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ymd(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes Feb 30 into March; reject that.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

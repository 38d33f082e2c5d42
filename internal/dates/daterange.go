package dates

import (
	"time"

	"github.com/AngelCh415/moi-etl/internal/models"
)

const day = 24 * time.Hour

// NewDateRange builds the inclusive range between two dates, swapping them
// when given in reverse order.
func NewDateRange(start, end time.Time) models.DateRange {
	start, end = Civil(start), Civil(end)
	if end.Before(start) {
		start, end = end, start
	}
	n := int(end.Sub(start)/day) + 1
	formatted := make([]string, 0, n)
	for i := 0; i < n; i++ {
		formatted = append(formatted, start.AddDate(0, 0, i).Format(ISOLayout))
	}
	return models.DateRange{Start: start, End: end, DayCount: n, FormattedDates: formatted}
}

func RangeFromISO(start, end string) (models.DateRange, bool) {
	s, ok1 := Parse(start)
	e, ok2 := Parse(end)
	if !ok1 || !ok2 {
		return models.DateRange{}, false
	}
	return NewDateRange(s, e), true
}

func SingleDay(d time.Time) models.DateRange { return NewDateRange(d, d) }

// LastNDays ends on now's calendar day.
func LastNDays(now time.Time, n int) models.DateRange {
	if n < 1 {
		n = 1
	}
	end := Civil(now)
	return NewDateRange(end.AddDate(0, 0, -(n - 1)), end)
}

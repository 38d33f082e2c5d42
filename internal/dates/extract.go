package dates

import (
	"regexp"
)

var (
	googleRangeRe  = regexp.MustCompile(`([A-Za-z]+\.?\s+\d{1,2},\s*\d{4})\s*[-–—]\s*([A-Za-z]+\.?\s+\d{1,2},\s*\d{4})`)
	googleSingleRe = regexp.MustCompile(`([A-Za-z]+\.?\s+\d{1,2},\s*\d{4})`)
	shopifyRangeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})(?:\s+|_)to(?:\s+|_)(\d{4}-\d{2}-\d{2})`)
	shopifyDayRe   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// ExtractGoogleDateFromHeader returns the END date of a Google Ads report
// header such as "September 10, 2025 - September 29, 2025". Aggregate totals
// are attributed to the last day of the reporting window.
func ExtractGoogleDateFromHeader(line string) (string, bool) {
	if m := googleRangeRe.FindStringSubmatch(line); m != nil {
		if d, ok := Parse(m[2]); ok {
			return d.Format(ISOLayout), true
		}
	}
	if m := googleSingleRe.FindStringSubmatch(line); m != nil {
		if d, ok := Parse(m[1]); ok {
			return d.Format(ISOLayout), true
		}
	}
	return "", false
}

// ExtractShopifyDateFromFilename reads "... 2025-09-10 to 2025-09-23.csv".
// A filename carrying a single date yields a one-day range.
func ExtractShopifyDateFromFilename(name string) (start, end string, ok bool) {
	if m := shopifyRangeRe.FindStringSubmatch(name); m != nil {
		s, ok1 := Parse(m[1])
		e, ok2 := Parse(m[2])
		if ok1 && ok2 {
			return s.Format(ISOLayout), e.Format(ISOLayout), true
		}
	}
	if m := shopifyDayRe.FindStringSubmatch(name); m != nil {
		if d, ok := Parse(m[1]); ok {
			iso := d.Format(ISOLayout)
			return iso, iso, true
		}
	}
	return "", "", false
}

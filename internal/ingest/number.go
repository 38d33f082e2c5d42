package ingest

import (
	"strconv"
	"strings"
)

var numberNoise = strings.NewReplacer(
	",", "", "%", "", "₹", "", "$", "", "€", "", "£", "",
	"INR", "", "USD", "", "EUR", "", "\"", "", " ", "", "\u00a0", "",
)

// ParseNumber reads an export cell leniently. Empty cells, "--" and anything
// unreadable count as 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" || s == "-" {
		return 0
	}
	if strings.Count(s, ":") > 0 {
		return parseClock(s)
	}
	f, err := strconv.ParseFloat(numberNoise.Replace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseClock converts "hh:mm:ss" or "mm:ss" durations to seconds.
func parseClock(s string) float64 {
	parts := strings.Split(s, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0
		}
		total = total*60 + v
	}
	return total
}

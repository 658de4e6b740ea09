package core

import (
	"strings"
	"time"
)

const (
	// DateLayout is the MM/DD/YYYY format used in requests and rendered prompts.
	DateLayout = "01/02/2006"
	// parseLayout also accepts single-digit month and day.
	parseLayout = "1/2/2006"
)

// ParseDate parses a MM/DD/YYYY string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(parseLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ParseOptionalDate parses s and returns the empty Date when s is blank or
// malformed. An invalid due date silently becomes "no date"; callers that
// want to surface the problem should log the ok flag.
func ParseOptionalDate(s string) (d Date, ok bool) {
	if strings.TrimSpace(s) == "" {
		return Date{}, true
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// FormatDate renders d as MM/DD/YYYY, or fallback when d is empty.
func FormatDate(d Date, fallback string) string {
	if d.IsEmpty() {
		return fallback
	}
	return d.Format(DateLayout)
}

// FormatDay renders a timestamp's calendar date as MM/DD/YYYY.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}

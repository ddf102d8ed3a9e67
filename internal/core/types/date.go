package types

import (
	"time"

	"fuelstation/internal/core/apperror"
)

// DateLayout is the wire and cache-key format of business dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD business date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date, expected YYYY-MM-DD").
			WithDetail("value", s)
	}
	return t, nil
}

// FormatDate renders a business date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// PreviousDay returns the calendar day before t.
func PreviousDay(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, -1)
}

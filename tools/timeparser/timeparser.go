package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// ParseReadingTimestamp tries each layout in order and returns the first match,
// interpreted as UTC.
func ParseReadingTimestamp(dateStr string, layouts []string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	var lastErr error
	for _, layout := range layouts {
		if err := checkPaddedHour(layout, dateStr); err != nil {
			lastErr = err
			continue
		}
		t, err := time.ParseInLocation(layout, dateStr, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no layouts configured")
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// checkPaddedHour enforces a two-digit hour where the layout uses "15".
// time.Parse accepts "9:24" for "15:04".
func checkPaddedHour(layout, value string) error {
	layoutFields := strings.Fields(layout)
	valueFields := strings.Fields(value)
	if len(layoutFields) != len(valueFields) {
		return nil
	}

	for i, field := range layoutFields {
		idx := strings.Index(field, "15")
		if idx < 0 {
			continue
		}
		v := valueFields[i]
		if len(v) < idx+2 || !isDigit(v[idx]) || !isDigit(v[idx+1]) {
			return fmt.Errorf("hour in '%s' must have two digits", v)
		}
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// FormatReadingTimestamp renders t in UTC using layout.
func FormatReadingTimestamp(t time.Time, layout string) string {
	return t.UTC().Format(layout)
}

package util

import (
	"fmt"
	"time"
)

// FormatNumber formats an int64 with K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M"
func FormatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatPercent renders a percentage with one decimal and a sign for lifts.
// Examples: 25 -> "25.0%", FormatPercent(20, true) -> "+20.0%"
func FormatPercent(p float64, signed bool) string {
	if signed {
		return fmt.Sprintf("%+.1f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}

// FormatDateTime formats a timestamp as 2006-01-02 15:04 in UTC.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

package chat

import (
	"fmt"
	"time"
)

// formatBytes renders a byte count the way clients display sizes and speeds.
func formatBytes(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	case n < 1<<30:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	}
}

// formatSeconds renders a remaining-time estimate.
func formatSeconds(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
}

// formatExpiry renders an expiry timestamp in milliseconds, or "permanent"
// when the file never expires.
func formatExpiry(expiryMillis *int64) string {
	if expiryMillis == nil {
		return "permanent"
	}
	return msToTime(*expiryMillis).Format("2006-01-02 15:04:05")
}

func msToTime(ms int64) time.Time { return time.UnixMilli(ms) }

// expiryMillis converts an optional expiry instant to the millisecond form
// carried on wire payloads.
func expiryMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// Package spend tracks the daily volume that feeds DailyLimit policy
// conditions. The day bucket rolls over at UTC midnight; the caller
// supplies the timestamp so tracking stays deterministic under test.
package spend

import (
	"context"
	"time"
)

// Tracker accumulates authorized spend per UTC day.
type Tracker interface {
	// DailySpent returns the amount recorded for the day containing now.
	DailySpent(ctx context.Context, now time.Time) (uint64, error)
	// Record adds amount to the day containing now.
	Record(ctx context.Context, amount uint64, now time.Time) error
}

// dayKey buckets a timestamp into its UTC calendar day.
func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

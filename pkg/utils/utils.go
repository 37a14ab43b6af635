package utils

import (
	"fmt"
	"time"
)

// FormatRoundedUnit renders seconds in its largest whole unit.
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds > 3600 {
		return fmt.Sprintf("%dh", int64(seconds/3600))
	}
	return fmt.Sprintf("%dm", int64(seconds/60))
}

// Ago formats how long before now t was, e.g. "3m ago".
func Ago(t, now time.Time) string {
	return FormatRoundedUnit(int64(now.Sub(t).Seconds())) + " ago"
}

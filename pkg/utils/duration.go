package utils

import (
	"fmt"
	"time"
)

// FormatDuration renders the time left until a scheduled event.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "Past due"
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%d %s, %d %s", days, plural(days, "day"), hours, plural(hours, "hour"))
	}
	if hours > 0 {
		return fmt.Sprintf("%d %s, %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	}
	if minutes == 0 {
		return "less than a minute"
	}
	return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

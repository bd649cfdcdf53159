package utils

import (
	"fmt"
	"time"
)

// FormatDuration renders d in its largest whole unit: 42s, 7m, 3h, 2d.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// TruncateID shortens a node id for table output.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

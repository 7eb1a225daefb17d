package timeutils

import (
	"fmt"
	"time"
)

// FormatDuration renders seconds as M:SS, or H:MM:SS once an hour is reached.
// leadZero pads minutes below ten even without hours.
func FormatDuration(seconds int, leadZero bool) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds - hours*3600) / 60
	secs := seconds - hours*3600 - minutes*60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	if leadZero {
		return fmt.Sprintf("%02d:%02d", minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// FormatDate renders a timestamp label such as "March 7, 2024 at 9:05".
func FormatDate(t time.Time, monthShort, withYear bool) string {
	month := t.Month().String()
	if monthShort {
		month = month[:3]
	}

	s := fmt.Sprintf("%s %d", month, t.Day())
	if withYear {
		s += fmt.Sprintf(", %d", t.Year())
	}
	return fmt.Sprintf("%s at %d:%02d", s, t.Hour(), t.Minute())
}

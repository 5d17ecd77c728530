package crontab

import (
	"fmt"
	"strings"
)

var weekdayNames = map[string]string{
	"0": "Sunday", "1": "Monday", "2": "Tuesday", "3": "Wednesday",
	"4": "Thursday", "5": "Friday", "6": "Saturday", "7": "Sunday",
}

// Describe renders a 5-field cron expression in rough human terms for the
// dashboard. Expressions it cannot summarize come back unchanged.
func Describe(expr string) string {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return expr
	}
	minute, hour, _, _, weekday := parts[0], parts[1], parts[2], parts[3], parts[4]

	var desc []string
	switch {
	case minute == "*":
		desc = append(desc, "every minute")
	case strings.HasPrefix(minute, "*/"):
		desc = append(desc, fmt.Sprintf("every %s minutes", minute[2:]))
	default:
		desc = append(desc, fmt.Sprintf("at minute %s", minute))
	}

	switch {
	case hour == "*":
		if !strings.HasPrefix(desc[0], "every") {
			desc = append(desc, "every hour")
		}
	case strings.HasPrefix(hour, "*/"):
		desc = append(desc, fmt.Sprintf("every %s hours", hour[2:]))
	default:
		desc = append(desc, fmt.Sprintf("past hour %s", hour))
	}

	if weekday != "*" {
		if name, ok := weekdayNames[weekday]; ok {
			desc = append(desc, "on "+name)
		}
	}

	if len(desc) > 3 {
		return expr
	}
	return strings.Join(desc, " ")
}

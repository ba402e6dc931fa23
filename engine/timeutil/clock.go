package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses an HH:MM or HH:MM:SS time-of-day into minutes since
// midnight. Seconds are accepted and discarded.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes-since-midnight as HH:MM. Values beyond
// 24h wrap onto the clock face.
func FormatClock(clockMin int) string {
	clockMin %= 24 * 60
	if clockMin < 0 {
		clockMin += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", clockMin/60, clockMin%60)
}

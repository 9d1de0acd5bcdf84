package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDeadline accepts a date (2006-01-02), an RFC 3339 timestamp, or a
// number of days from now. Past dates are allowed.
func ParseDeadline(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)

	if t, err := time.Parse("2006-01-02", input); err == nil {
		return t, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}

	days, err := strconv.Atoi(input)
	if err == nil && days > 0 {
		return now.AddDate(0, 0, days), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised deadline %q", input)
}

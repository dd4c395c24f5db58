package tabular

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"1/2/06",
	"01/02/2006 15:04",
	"01/02/06 3:04 PM",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/06 3:04 PM",
	"1/2/06 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01-02-06",
	"01-02-2006",
}

// ParseDate parses the date formats the exports use.
func ParseDate(raw string) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Day truncates t to its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders MM/DD/YYYY as the ERP expects.
func FormatDate(t time.Time) string {
	return t.Format("01/02/2006")
}

// Compact renders MMDDYYYY for journal entry and file names.
func Compact(t time.Time) string {
	return t.Format("01022006")
}

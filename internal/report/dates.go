package report

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DisplayLayout is how dates are shown in reports.
const DisplayLayout = "02 Jan 2006, 15:04"

var inputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseDate parses the timestamp formats the backend is known to send.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders raw in DisplayLayout. Unparsable input is returned as is.
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.Format(DisplayLayout)
}

// RelativeDate renders raw relative to now ("3 days ago"), or "" when raw
// cannot be parsed.
func RelativeDate(raw string, now time.Time) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const isoSeconds = "2006-01-02T15:04:05"

var (
	naiveLayouts = []string{
		"2006-01-02",
		"2006-01-02T15",
		"2006-01-02T15:04",
		isoSeconds,
	}
	zonedLayouts = []string{
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05Z0700",
	}

	errNotISO = errors.New("not an ISO-8601 date")
)

// parseISO accepts the ISO-8601 shapes produced by common exporters: a bare
// date, or date and time joined by "T" or a space, with optional seconds,
// fraction and UTC offset. zoned reports whether an offset was present.
func parseISO(s string) (t time.Time, zoned bool, err error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Microsecond), false, nil
		}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Microsecond), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("parseISO %q: %w", s, errNotISO)
}

// formatISO renders YYYY-MM-DDTHH:MM:SS, adding microseconds only when
// non-zero and the UTC offset only for zoned values.
func formatISO(t time.Time, zoned bool) string {
	var b strings.Builder
	b.WriteString(t.Format(isoSeconds))

	if us := t.Nanosecond() / 1000; us != 0 {
		fmt.Fprintf(&b, ".%06d", us)
	}

	if zoned {
		_, offset := t.Zone()
		sign := '+'
		if offset < 0 {
			sign = '-'
			offset = -offset
		}
		fmt.Fprintf(&b, "%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
	}
	return b.String()
}

package parser

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var (
	numericOffsetRe = regexp.MustCompile(`[+-][0-9]{4}`)
	parenZoneRe     = regexp.MustCompile(`\([A-Z]{3,4}\)\s*$`)
)

// Offset-bearing layouts seen in top-level Date headers.
var offsetLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// Offset-less layouts seen in embedded Sent/Date lines. The Outlook-style
// forms dominate the quoted blocks in the corpus.
var naiveLayouts = []string{
	"Monday, January 02, 2006 3:04 PM",
	"Monday, January 2, 2006 3:04 PM",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 3:04 PM",
}

// cleanDateString drops a trailing parenthesized zone abbreviation such as
// "(PDT)". The abbreviations are ambiguous; when a numeric offset is
// present it is sufficient on its own.
func cleanDateString(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(parenZoneRe.ReplaceAllString(s, ""))
}

// ParseDate parses a Date header value. hasOffset reports whether the
// value carried its own numeric UTC offset; values without one are
// interpreted in UTC.
func ParseDate(s string) (t time.Time, hasOffset bool, err error) {
	return ParseDateIn(s, time.UTC)
}

// ParseDateIn is ParseDate for values that may lack an offset: such values
// are interpreted in loc. Used by the thread splitter, which resolves an
// embedded message's date in its enclosing message's zone.
func ParseDateIn(s string, loc *time.Location) (time.Time, bool, error) {
	cleaned := cleanDateString(s)
	if cleaned == "" {
		return time.Time{}, false, fmt.Errorf("empty date string")
	}

	if numericOffsetRe.MatchString(cleaned) {
		if t, err := mail.ParseDate(cleaned); err == nil {
			return t, true, nil
		}
		for _, layout := range offsetLayouts {
			if t, err := time.Parse(layout, cleaned); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("unrecognized date format: %q", s)
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date format: %q", s)
}

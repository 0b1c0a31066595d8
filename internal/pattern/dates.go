package pattern

import (
	"strings"
	"time"
)

// Price books carry effective dates in whatever format the manufacturer's
// layout tool produced. Everything normalizes to ISO 8601 (2006-01-02).

const isoDate = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"January 2006",
	"Jan 2006",
	"01/2006",
}

// NormalizeDate parses a date token in any supported format and returns the
// canonical ISO form. Month-only formats normalize to the first of the month.
func NormalizeDate(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.Format(isoDate), true
		}
	}
	return "", false
}

package pattern

import (
	"regexp"
	"strings"
)

// SKU shape: alphanumeric groups, optional hyphen separators, bounded length.
// Manufacturer part numbers are short codes like "8200LNL-US26D" or "L9080P";
// prose, prices, and dates must never match.

const (
	skuMinLen = 3
	skuMaxLen = 24
)

var skuRe = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*$`)

// MatchSKU reports whether token has SKU shape and returns its canonical
// (uppercased) form. Pure numbers are rejected: a bare "1234" is far more
// likely a price or a page artifact than an identifier.
func MatchSKU(token string) (string, bool) {
	token = strings.TrimSpace(token)
	n := len(token)
	if n < skuMinLen || n > skuMaxLen {
		return "", false
	}
	if !skuRe.MatchString(token) {
		return "", false
	}

	hasDigit := false
	hasAlpha := false
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			hasAlpha = true
		}
	}
	if !hasDigit {
		return "", false
	}
	if !hasAlpha && !strings.Contains(token, "-") {
		return "", false
	}

	// A token that normalizes as money or a date is not an identifier.
	if _, ok := ParseMoney(token); ok {
		return "", false
	}
	if _, ok := NormalizeDate(token); ok {
		return "", false
	}

	return strings.ToUpper(token), true
}

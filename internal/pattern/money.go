package pattern

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary tokens are normalized to fixed-point decimals. Binary floats are
// never used for prices: repeated parse/format cycles must be drift-free.

var moneyRe = regexp.MustCompile(
	`(?:(?:[$€£])|(?:\b(?:USD|EUR|GBP|CAD)\b))?\s*` +
		`\d{1,3}(?:[,.\s]\d{3})*(?:[.,]\d{1,2})?` +
		`\s*(?:[$€£]|(?:\b(?:USD|EUR|GBP|CAD)\b))?`)

var currencyMarkRe = regexp.MustCompile(`[$€£]|\b(?:USD|EUR|GBP|CAD)\b`)

// ParseMoney normalizes a single monetary token to a fixed-point decimal.
// It accepts US ("1,234.56") and European ("1.234,56") digit grouping, with
// or without a currency mark. A bare integer with no currency mark and no
// decimal part is not money; SKUs and quantities would match otherwise.
func ParseMoney(token string) (decimal.Decimal, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return decimal.Zero, false
	}

	m := moneyRe.FindString(token)
	if strings.TrimSpace(m) != token {
		return decimal.Zero, false
	}

	hasMark := currencyMarkRe.MatchString(token)
	digits := currencyMarkRe.ReplaceAllString(token, "")
	digits = strings.TrimSpace(digits)

	norm, hasCents := normalizeDigits(digits)
	if norm == "" {
		return decimal.Zero, false
	}
	if !hasMark && !hasCents {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseAllMoney extracts every monetary value from a multi-line cell, in
// encounter order. Stacked price columns ("$10.00\n$12.50\n$15.75") and
// slash-separated lists ("$10.00 / $12.50") both come back as one value per
// token.
func ParseAllMoney(cell string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range moneyRe.FindAllString(cell, -1) {
		if d, ok := ParseMoney(strings.TrimSpace(m)); ok {
			out = append(out, d)
		}
	}
	return out
}

// StripMoney removes every parseable monetary token from a cell, leaving the
// remainder for further token scanning. Digit runs that merely look like
// prices but fail ParseMoney (bare integers, SKU fragments) stay in place.
func StripMoney(cell string) string {
	return moneyRe.ReplaceAllStringFunc(cell, func(m string) string {
		if _, ok := ParseMoney(strings.TrimSpace(m)); ok {
			return " "
		}
		return m
	})
}

// FormatMoney renders a decimal as a fixed-point string with two places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// normalizeDigits converts grouped digit strings to canonical "1234.56" form.
// When both separators appear, the rightmost is the decimal point. A lone
// comma or dot followed by exactly two digits at the end is a decimal point;
// followed by three digits it is a thousands separator.
func normalizeDigits(s string) (string, bool) {
	s = strings.ReplaceAll(s, " ", "")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastDot > lastComma {
			// US grouping: 1,234.56
			return strings.ReplaceAll(s, ",", ""), true
		}
		// European grouping: 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1), true

	case lastComma >= 0:
		tail := len(s) - lastComma - 1
		if tail == 3 && strings.Count(s, ",") >= 1 && !strings.Contains(s[lastComma+1:], ",") && len(s) > 4 {
			// Could be thousands or a 3-digit decimal; price books use 2.
			return strings.ReplaceAll(s, ",", ""), false
		}
		if tail <= 2 {
			return strings.Replace(s, ",", ".", 1), true
		}
		return strings.ReplaceAll(s, ",", ""), false

	case lastDot >= 0:
		tail := len(s) - lastDot - 1
		if tail == 3 && strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", ""), false
		}
		if tail <= 2 {
			return s, true
		}
		return strings.ReplaceAll(s, ".", ""), false

	default:
		return s, false
	}
}

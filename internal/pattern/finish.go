package pattern

import (
	"regexp"
	"strings"
)

// Finish/option codes come in manufacturer vocabularies (BHMA/ANSI codes like
// US3, US26D, or numeric finishes like 605, 613). A Vocabulary carries the
// configured list; a generic shape catches codes outside it.

// Vocabulary is a configurable set of known finish/option codes.
type Vocabulary struct {
	codes map[string]struct{}
}

// NewVocabulary builds a vocabulary from configured codes; matching is
// case-insensitive.
func NewVocabulary(codes []string) *Vocabulary {
	v := &Vocabulary{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			v.codes[c] = struct{}{}
		}
	}
	return v
}

// DefaultVocabulary covers the common BHMA finish codes seen across
// architectural hardware price books.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary([]string{
		"US3", "US4", "US10", "US10B", "US15", "US26", "US26D", "US32", "US32D",
		"605", "606", "612", "613", "618", "619", "625", "626", "630",
	})
}

// genericFinishRe is the fallback shape: "US" plus 1-2 digits and an optional
// letter, or a bare 3-digit BHMA number with an optional letter suffix.
var genericFinishRe = regexp.MustCompile(`^(?:US\d{1,2}[A-Z]?|\d{3}[A-Z])$`)

// MatchFinish reports whether token is a finish code, preferring the
// configured vocabulary and falling back to the generic shape. Returns the
// canonical (uppercased) code.
func MatchFinish(v *Vocabulary, token string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(token))
	if code == "" {
		return "", false
	}
	if v != nil {
		if _, ok := v.codes[code]; ok {
			return code, true
		}
	}
	if genericFinishRe.MatchString(code) {
		return code, true
	}
	return "", false
}

var finishSplitRe = regexp.MustCompile(`\s*[/,]\s*`)

// SplitFinishList splits a multi-valued finish cell ("US3 / US10B / US26D")
// into individual canonical codes, in encounter order. Tokens that are not
// finish codes are dropped.
func SplitFinishList(v *Vocabulary, cell string) []string {
	var out []string
	for _, part := range finishSplitRe.Split(cell, -1) {
		for _, tok := range strings.Fields(part) {
			if code, ok := MatchFinish(v, tok); ok {
				out = append(out, code)
			}
		}
	}
	return out
}

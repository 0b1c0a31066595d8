package pattern

// TokenKind is the normalization rule a token resolved to.
type TokenKind int

const (
	KindNone TokenKind = iota
	KindMoney
	KindDate
	KindFinish
	KindSKU
)

// Classification is the outcome of resolving one token against all rules.
type Classification struct {
	Kind TokenKind
	// Normalized is the canonical form under the winning rule.
	Normalized string
	// Ambiguous is set when the token matched more than one rule. The
	// precedence money > date > finish > SKU decided the winner; callers
	// fold the ambiguity into field confidence rather than guessing silently.
	Ambiguous bool
}

// Classify resolves a token against every normalization rule with the defined
// precedence. Total: unmatched tokens return KindNone, never an error.
func Classify(v *Vocabulary, token string) Classification {
	var matches int
	var c Classification

	if d, ok := ParseMoney(token); ok {
		matches++
		c = Classification{Kind: KindMoney, Normalized: FormatMoney(d)}
	}
	if iso, ok := NormalizeDate(token); ok {
		matches++
		if c.Kind == KindNone {
			c = Classification{Kind: KindDate, Normalized: iso}
		}
	}
	if code, ok := MatchFinish(v, token); ok {
		matches++
		if c.Kind == KindNone {
			c = Classification{Kind: KindFinish, Normalized: code}
		}
	}
	if sku, ok := MatchSKU(token); ok {
		matches++
		if c.Kind == KindNone {
			c = Classification{Kind: KindSKU, Normalized: sku}
		}
	}

	c.Ambiguous = matches > 1
	return c
}

package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSKU(t *testing.T) {
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"8200LNL-US26D", "8200LNL-US26D", true},
		{"l9080p", "L9080P", true},
		{"ND53PD", "ND53PD", true},
		{"123-456", "123-456", true},
		{"1234", "", false},          // pure number
		{"ab", "", false},            // too short
		{"lever", "", false},         // no digit
		{"$1,234.56", "", false},     // money
		{"2024-01-15", "", false},    // date
		{"A1-B2-C3-D4-E5-F6-G7-H8-I9", "", false}, // too long
	}
	for _, tc := range tests {
		got, ok := MatchSKU(tc.token)
		assert.Equal(t, tc.ok, ok, "token %q", tc.token)
		if tc.ok {
			assert.Equal(t, tc.want, got, "token %q", tc.token)
		}
	}
}

func TestMatchFinish_Vocabulary(t *testing.T) {
	v := DefaultVocabulary()
	code, ok := MatchFinish(v, "us26d")
	require.True(t, ok)
	assert.Equal(t, "US26D", code)
}

func TestMatchFinish_GenericFallback(t *testing.T) {
	// Not in the default vocabulary but matches the generic shape.
	code, ok := MatchFinish(DefaultVocabulary(), "US19")
	require.True(t, ok)
	assert.Equal(t, "US19", code)
}

func TestMatchFinish_Rejects(t *testing.T) {
	v := DefaultVocabulary()
	for _, tok := range []string{"", "lever", "8200LNL", "$10.00"} {
		_, ok := MatchFinish(v, tok)
		assert.False(t, ok, "token %q", tok)
	}
}

func TestSplitFinishList(t *testing.T) {
	got := SplitFinishList(DefaultVocabulary(), "US3 / US10B / US26D")
	assert.Equal(t, []string{"US3", "US10B", "US26D"}, got)
}

func TestSplitFinishList_DropsNonCodes(t *testing.T) {
	got := SplitFinishList(DefaultVocabulary(), "US3, brass lever, US26D")
	assert.Equal(t, []string{"US3", "US26D"}, got)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"2024-03-01", "2024-03-01", true},
		{"03/01/2024", "2024-03-01", true},
		{"March 1, 2024", "2024-03-01", true},
		{"1 March 2024", "2024-03-01", true},
		{"March 2024", "2024-03-01", true},
		{"not a date", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := NormalizeDate(tc.token)
		assert.Equal(t, tc.ok, ok, "token %q", tc.token)
		if tc.ok {
			assert.Equal(t, tc.want, got, "token %q", tc.token)
		}
	}
}

func TestClassify_Precedence(t *testing.T) {
	v := DefaultVocabulary()

	// US26D matches both finish and SKU shape; finish wins and the result is
	// flagged ambiguous so callers can discount confidence.
	c := Classify(v, "US26D")
	assert.Equal(t, KindFinish, c.Kind)
	assert.Equal(t, "US26D", c.Normalized)
	assert.True(t, c.Ambiguous)

	c = Classify(v, "$12.50")
	assert.Equal(t, KindMoney, c.Kind)
	assert.Equal(t, "12.50", c.Normalized)
	assert.False(t, c.Ambiguous)

	c = Classify(v, "8200LNL-US3")
	assert.Equal(t, KindSKU, c.Kind)

	c = Classify(v, "utterly unrecognizable prose")
	assert.Equal(t, KindNone, c.Kind)
	assert.False(t, c.Ambiguous)
}

func TestClassify_Total(t *testing.T) {
	// Never panics, never errors: a sentinel "no match" comes back instead.
	for _, tok := range []string{"", " ", "\n", "///", "£", "--"} {
		assert.NotPanics(t, func() { Classify(DefaultVocabulary(), tok) })
	}
}

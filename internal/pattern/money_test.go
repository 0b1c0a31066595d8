package pattern

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney_USGrouping(t *testing.T) {
	d, ok := ParseMoney("$1,234.56")
	require.True(t, ok)
	assert.Equal(t, "1234.56", d.StringFixed(2))
}

func TestParseMoney_RoundTripNoDrift(t *testing.T) {
	// Parse → format → parse must be exact; fixed-point, never binary floats.
	d, ok := ParseMoney("$1,234.56")
	require.True(t, ok)
	formatted := FormatMoney(d)
	assert.Equal(t, "1234.56", formatted)

	again, ok := ParseMoney(formatted)
	require.True(t, ok)
	assert.True(t, d.Equal(again))
}

func TestParseMoney_EuropeanGrouping(t *testing.T) {
	d, ok := ParseMoney("€1.234,56")
	require.True(t, ok)
	assert.Equal(t, "1234.56", d.StringFixed(2))
}

func TestParseMoney_CurrencyCode(t *testing.T) {
	d, ok := ParseMoney("USD 45.00")
	require.True(t, ok)
	assert.Equal(t, "45.00", d.StringFixed(2))
}

func TestParseMoney_BareIntegerRejected(t *testing.T) {
	// No currency mark, no decimal part: could be a SKU fragment or quantity.
	_, ok := ParseMoney("1234")
	assert.False(t, ok)
}

func TestParseMoney_BareIntegerWithMarkAccepted(t *testing.T) {
	d, ok := ParseMoney("$1234")
	require.True(t, ok)
	assert.Equal(t, "1234.00", d.StringFixed(2))
}

func TestParseMoney_Garbage(t *testing.T) {
	for _, tok := range []string{"", "US26D", "lever handle", "8200LNL-US3", "$"} {
		_, ok := ParseMoney(tok)
		assert.False(t, ok, "token %q should not parse as money", tok)
	}
}

func TestParseAllMoney_StackedCellEncounterOrder(t *testing.T) {
	values := ParseAllMoney("$10.00 / $12.50 / $15.75")
	require.Len(t, values, 3)
	assert.Equal(t, "10.00", values[0].StringFixed(2))
	assert.Equal(t, "12.50", values[1].StringFixed(2))
	assert.Equal(t, "15.75", values[2].StringFixed(2))
}

func TestParseAllMoney_MultiLineCell(t *testing.T) {
	values := ParseAllMoney("$145.00\n$162.25\n$188.00")
	require.Len(t, values, 3)
	assert.Equal(t, "145.00", values[0].StringFixed(2))
	assert.Equal(t, "188.00", values[2].StringFixed(2))
}

func TestParseAllMoney_Empty(t *testing.T) {
	assert.Empty(t, ParseAllMoney("no prices here"))
}

func TestStripMoney_LeavesNonMonetaryTokens(t *testing.T) {
	got := StripMoney("US3 / US10B / US26D — $145.00")
	assert.Contains(t, got, "US3")
	assert.Contains(t, got, "US10B")
	assert.Contains(t, got, "US26D")
	assert.NotContains(t, got, "145")
}

func TestStripMoney_KeepsBareIntegers(t *testing.T) {
	// "8200" looks price-shaped but fails ParseMoney; it must survive so the
	// SKU scan can still see it.
	got := StripMoney("8200 LNL $45.00")
	assert.Contains(t, got, "8200")
	assert.NotContains(t, got, "45.00")
}

func TestFormatMoney_TwoPlaces(t *testing.T) {
	d := decimal.RequireFromString("7.5")
	assert.Equal(t, "7.50", FormatMoney(d))
}

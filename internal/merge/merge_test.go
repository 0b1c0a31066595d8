package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

func cand(key string, layer model.Layer, page int, price string, conf float64) model.CandidateRecord {
	fields := map[string]model.Field{}
	var prices []string
	if price != "" {
		fields[model.FieldPrice] = model.Field{Value: price, Confidence: 0.9}
		prices = []string{price}
	}
	return model.CandidateRecord{
		NaturalKey: key,
		Fields:     fields,
		Prices:     prices,
		Layer:      layer,
		PageIndex:  page,
		Confidence: conf,
	}
}

func TestMerge_Empty(t *testing.T) {
	assert.Nil(t, Merge(nil))
}

func TestMerge_HigherLayerWinsConflictingPrice(t *testing.T) {
	// Merge priority law: layer 3 only ran because layer 1 underperformed,
	// so its price wins the disagreement.
	records := Merge([]model.CandidateRecord{
		cand("8200LNL", model.Layer1, 4, "99.00", 0.7),
		cand("8200LNL", model.Layer3, 4, "145.00", 0.8),
	})

	require.Len(t, records, 1)
	assert.Equal(t, "145.00", records[0].Fields[model.FieldPrice].Value)
	assert.Equal(t, []model.Layer{model.Layer3, model.Layer1}, records[0].Layers)
}

func TestMerge_OverrideOutranksEverything(t *testing.T) {
	records := Merge([]model.CandidateRecord{
		cand("ND53PD", model.Layer3, 1, "80.00", 0.9),
		cand("ND53PD", model.LayerOverride, 1, "75.50", 0.9),
	})

	require.Len(t, records, 1)
	assert.Equal(t, "75.50", records[0].Fields[model.FieldPrice].Value)
}

func TestMerge_BackfillFromLowerLayer(t *testing.T) {
	winner := cand("L9080P", model.Layer2, 2, "310.00", 0.8)
	loser := cand("L9080P", model.Layer1, 2, "310.00", 0.6)
	loser.Fields[model.FieldDescription] = model.Field{Value: "Mortise lock body", Confidence: 0.6}

	records := Merge([]model.CandidateRecord{winner, loser})
	require.Len(t, records, 1)
	// The winner had no description; the losing candidate supplied it.
	assert.Equal(t, "Mortise lock body", records[0].Fields[model.FieldDescription].Value)
}

func TestMerge_BackfillOnlyReplacesLowConfidence(t *testing.T) {
	winner := cand("A1B2", model.Layer3, 0, "10.00", 0.8)
	winner.Fields[model.FieldDescription] = model.Field{Value: "OCR desciption", Confidence: 0.3}
	loser := cand("A1B2", model.Layer1, 0, "10.00", 0.7)
	loser.Fields[model.FieldDescription] = model.Field{Value: "Native description", Confidence: 0.6}

	records := Merge([]model.CandidateRecord{winner, loser})
	require.Len(t, records, 1)
	assert.Equal(t, "Native description", records[0].Fields[model.FieldDescription].Value)
}

func TestMerge_PriceBackfillKeepsFieldAndListAligned(t *testing.T) {
	// The winner's price field is weak enough to be backfilled; the losing
	// candidate's whole price list must come along, not just the field.
	winner := cand("8200LNL", model.Layer3, 2, "999.00", 0.8)
	winner.Fields[model.FieldPrice] = model.Field{Value: "999.00", Confidence: 0.3}
	loser := cand("8200LNL", model.Layer1, 2, "145.00", 0.7)
	loser.Prices = []string{"145.00", "162.25"}

	records := Merge([]model.CandidateRecord{winner, loser})
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "145.00", rec.Fields[model.FieldPrice].Value)
	assert.Equal(t, []string{"145.00", "162.25"}, rec.Prices)
	require.NotEmpty(t, rec.Prices)
	assert.Equal(t, rec.Prices[0], rec.Fields[model.FieldPrice].Value)
}

func TestMerge_ProvenanceRetainsEveryContributor(t *testing.T) {
	records := Merge([]model.CandidateRecord{
		cand("K100X", model.Layer1, 0, "5.00", 0.5),
		cand("K100X", model.Layer1, 0, "5.00", 0.5),
		cand("K100X", model.Layer2, 0, "5.25", 0.8),
	})

	require.Len(t, records, 1)
	assert.Len(t, records[0].Provenance, 3)
}

func TestMerge_EveryRecordHasProvenance(t *testing.T) {
	records := Merge([]model.CandidateRecord{
		cand("X1Y2", model.Layer1, 0, "1.00", 0.9),
		cand("Z9W8", model.Layer1, 3, "2.00", 0.9),
	})
	for _, r := range records {
		assert.NotEmpty(t, r.Provenance, "record %s", r.NaturalKey)
	}
}

func TestMerge_SameLayerTieBreaksOnLowestPage(t *testing.T) {
	records := Merge([]model.CandidateRecord{
		cand("T7T7", model.Layer1, 9, "2.00", 0.9),
		cand("T7T7", model.Layer1, 3, "1.00", 0.9),
	})

	require.Len(t, records, 1)
	assert.Equal(t, "1.00", records[0].Fields[model.FieldPrice].Value)
	assert.Equal(t, 3, records[0].PageIndex)
}

func TestMerge_OutputSortedByPageThenKey(t *testing.T) {
	records := Merge([]model.CandidateRecord{
		cand("ZZZ9", model.Layer1, 0, "3.00", 0.9),
		cand("AAA1", model.Layer1, 2, "1.00", 0.9),
		cand("BBB2", model.Layer1, 0, "2.00", 0.9),
	})

	require.Len(t, records, 3)
	assert.Equal(t, "BBB2", records[0].NaturalKey)
	assert.Equal(t, "ZZZ9", records[1].NaturalKey)
	assert.Equal(t, "AAA1", records[2].NaturalKey)
}

func TestAggregate_ZeroWhenNoUsableFields(t *testing.T) {
	c := model.CandidateRecord{NaturalKey: "~p0r0-deadbeef", Surrogate: true, Layer: model.Layer1}
	rec := model.ProductRecord{NaturalKey: c.NaturalKey, Surrogate: true, Fields: map[string]model.Field{}}
	assert.Equal(t, 0.0, Aggregate(rec, []model.CandidateRecord{c}))
}

func TestAggregate_InRangeAndDeterministic(t *testing.T) {
	bucket := []model.CandidateRecord{
		cand("Q4Q4", model.Layer2, 1, "20.00", 0.8),
		cand("Q4Q4", model.Layer1, 1, "20.00", 0.6),
	}
	rec := Merge(bucket)[0]

	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)

	again := Merge(bucket)[0]
	assert.Equal(t, rec.Confidence, again.Confidence)
}

func TestAggregate_CorroborationRaisesConfidence(t *testing.T) {
	lone := Merge([]model.CandidateRecord{
		cand("C3C3", model.Layer2, 1, "20.00", 0.8),
	})[0]
	corroborated := Merge([]model.CandidateRecord{
		cand("C3C3", model.Layer2, 1, "20.00", 0.8),
		cand("C3C3", model.Layer1, 1, "20.00", 0.6),
	})[0]

	assert.Greater(t, corroborated.Confidence, lone.Confidence)
}

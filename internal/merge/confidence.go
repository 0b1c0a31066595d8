package merge

import "github.com/catalog-group/pricebook-cli/internal/model"

// Aggregate confidence is a pure, documented function so repeated runs over
// the same document produce byte-identical output:
//
//	confidence = layerReliability(winner)
//	           × fieldCompleteness(merged)   — identifier, price, text ∈ [0,1]
//	           × meanFieldConfidence(merged)
//	           + corroborationBonus          — 0.05 when ≥2 layers agree on price
//
// clamped to [0,1]. Never a placeholder: a record with no usable fields
// scores zero.
func Aggregate(rec model.ProductRecord, bucket []model.CandidateRecord) float64 {
	winner := bucket[0]

	var present, expected float64 = 0, 3
	var confSum, confN float64

	if !rec.Surrogate {
		present++
		confSum += 0.9 // identifier shape is strong evidence by construction
		confN++
	}
	if f, ok := rec.Fields[model.FieldPrice]; ok {
		present++
		confSum += f.Confidence
		confN++
	}
	if f, ok := rec.Fields[model.FieldDescription]; ok {
		present++
		confSum += f.Confidence
		confN++
	} else if f, ok := rec.Fields[model.FieldFinish]; ok {
		present++
		confSum += f.Confidence
		confN++
	}

	if confN == 0 {
		return 0
	}

	score := winner.Layer.Reliability() * (present / expected) * (confSum / confN)

	if priceCorroborated(rec, bucket) {
		score += 0.05
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// priceCorroborated reports whether two candidates from distinct layers
// extracted the same leading price.
func priceCorroborated(rec model.ProductRecord, bucket []model.CandidateRecord) bool {
	price, ok := rec.Fields[model.FieldPrice]
	if !ok {
		return false
	}
	layers := make(map[model.Layer]struct{}, 2)
	for _, c := range bucket {
		f, ok := c.Fields[model.FieldPrice]
		if !ok || f.Value != price.Value {
			continue
		}
		layers[c.Layer] = struct{}{}
		if len(layers) >= 2 {
			return true
		}
	}
	return false
}

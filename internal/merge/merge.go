// Package merge reconciles every candidate record extracted across all
// pages and layers of one document into final product records with
// provenance and calibrated confidence.
package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

// lowFieldConfidence is the level below which a winning candidate's field is
// eligible for backfill from a lower-priority candidate.
const lowFieldConfidence = 0.5

// Merge buckets candidates by natural key, resolves each bucket by layer
// priority, backfills weak fields from losing candidates, and emits one
// product record per bucket. Output order is (winner page index, natural
// key): deterministic regardless of worker scheduling.
func Merge(candidates []model.CandidateRecord) []model.ProductRecord {
	if len(candidates) == 0 {
		return nil
	}

	buckets := make(map[string][]model.CandidateRecord)
	for _, c := range candidates {
		buckets[c.NaturalKey] = append(buckets[c.NaturalKey], c)
	}

	records := make([]model.ProductRecord, 0, len(buckets))
	for key, bucket := range buckets {
		records = append(records, resolveBucket(key, bucket))
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].PageIndex != records[j].PageIndex {
			return records[i].PageIndex < records[j].PageIndex
		}
		return records[i].NaturalKey < records[j].NaturalKey
	})

	zap.L().Debug("merge: resolved buckets",
		zap.Int("candidates", len(candidates)),
		zap.Int("records", len(records)),
	)
	return records
}

// resolveBucket merges all candidates sharing one natural key. Higher layers
// win disagreements outright: they only ran because lower layers demonstrably
// underperformed on that page. Same-layer ties break on lowest page index,
// then row index, for reproducibility.
func resolveBucket(key string, bucket []model.CandidateRecord) model.ProductRecord {
	sort.Slice(bucket, func(i, j int) bool {
		a, b := bucket[i], bucket[j]
		if pa, pb := a.Layer.Priority(), b.Layer.Priority(); pa != pb {
			return pa > pb
		}
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		if a.RowIndex != b.RowIndex {
			return a.RowIndex < b.RowIndex
		}
		return a.Confidence > b.Confidence
	})

	winner := bucket[0]
	fields := make(map[string]model.Field, len(winner.Fields))
	for k, v := range winner.Fields {
		fields[k] = v
	}
	prices := winner.Prices

	// Backfill: losing candidates still contribute fields the winner lacks
	// or holds only weakly. They are never discarded outright. A backfilled
	// price field carries its candidate's price list along: the price field
	// must stay equal to Prices[0].
	for _, c := range bucket[1:] {
		for k, v := range c.Fields {
			existing, ok := fields[k]
			if !ok || (existing.Confidence < lowFieldConfidence && v.Confidence > existing.Confidence) {
				fields[k] = v
				if k == model.FieldPrice {
					if len(c.Prices) > 0 {
						prices = c.Prices
					} else {
						prices = []string{v.Value}
					}
				}
			}
		}
		if len(prices) == 0 && len(c.Prices) > 0 {
			prices = c.Prices
		}
	}

	rec := model.ProductRecord{
		NaturalKey: key,
		Surrogate:  winner.Surrogate,
		Fields:     fields,
		Prices:     prices,
		PageIndex:  winner.PageIndex,
		Layers:     distinctLayers(bucket),
		Provenance: provenance(bucket),
	}
	rec.Confidence = Aggregate(rec, bucket)
	return rec
}

// distinctLayers lists contributing layers, highest priority first.
func distinctLayers(bucket []model.CandidateRecord) []model.Layer {
	seen := make(map[model.Layer]struct{}, 4)
	var out []model.Layer
	for _, c := range bucket {
		if _, ok := seen[c.Layer]; ok {
			continue
		}
		seen[c.Layer] = struct{}{}
		out = append(out, c.Layer)
	}
	return out
}

// provenance retains every contributing candidate, not just the winner.
func provenance(bucket []model.CandidateRecord) []model.ProvenanceEntry {
	out := make([]model.ProvenanceEntry, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, model.ProvenanceEntry{
			Layer:      c.Layer,
			PageIndex:  c.PageIndex,
			RowIndex:   c.RowIndex,
			Region:     c.Region,
			Confidence: c.Confidence,
			Fields:     c.Fields,
		})
	}
	return out
}

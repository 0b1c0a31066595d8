package extract

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pattern"
)

// Per-field base confidences. Money and SKU shapes are near-unambiguous;
// free-text descriptions are weak evidence on their own.
const (
	confSKU         = 0.90
	confPrice       = 0.95
	confFinish      = 0.85
	confDescription = 0.60
	// ambiguityPenalty is subtracted when a token matched several
	// normalization rules and precedence had to decide.
	ambiguityPenalty = 0.15
)

// RowParser turns recovered table rows into candidate records. All layers
// share one parser so a row reads identically no matter which layer
// recovered it.
type RowParser struct {
	vocab *pattern.Vocabulary
	// explodeFinish splits one-price-many-finishes rows into one candidate
	// per finish code. Behavior is configuration-driven, never accidental.
	explodeFinish bool
}

// NewRowParser creates a parser over the given finish vocabulary.
func NewRowParser(vocab *pattern.Vocabulary, explodeFinish bool) *RowParser {
	return &RowParser{vocab: vocab, explodeFinish: explodeFinish}
}

// Parse extracts zero or more candidates from one row's cells. confScale
// discounts every field confidence; layers pass their own reliability signal
// (1.0 for native text, detector×OCR confidence for vision rows).
func (rp *RowParser) Parse(cells []string, layer model.Layer, pageIndex, rowIndex int, region model.Region, confScale float64) []model.CandidateRecord {
	if confScale <= 0 || confScale > 1 {
		confScale = 1
	}

	var (
		sku        string
		skuConf    float64
		prices     []string
		priceConf  float64
		finishes   []string
		finishConf float64
		descParts  []string
	)

	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}

		// Stacked monetary values: all of them, in encounter order. Only the
		// monetary tokens are consumed, never the whole cell: finish lists
		// and SKUs routinely share a cell with the price.
		if vals := pattern.ParseAllMoney(cell); len(vals) > 0 {
			for _, v := range vals {
				prices = append(prices, pattern.FormatMoney(v))
			}
			priceConf = confPrice
			cell = strings.Trim(pattern.StripMoney(cell), " \t/,;:—–-")
			if cell == "" {
				continue
			}
		}

		if codes := pattern.SplitFinishList(rp.vocab, cell); len(codes) > 0 {
			// A cell that is nothing but finish codes is a finish cell;
			// mixed cells fall through to token scanning below.
			if finishOnlyCell(rp.vocab, cell) {
				finishes = append(finishes, codes...)
				finishConf = confFinish
				continue
			}
		}

		matched := false
		for _, tok := range strings.Fields(cell) {
			c := pattern.Classify(rp.vocab, tok)
			switch c.Kind {
			case pattern.KindSKU:
				if sku == "" {
					sku = c.Normalized
					skuConf = confSKU
					if c.Ambiguous {
						skuConf -= ambiguityPenalty
					}
					matched = true
				}
			case pattern.KindFinish:
				finishes = append(finishes, c.Normalized)
				finishConf = confFinish
				if c.Ambiguous {
					finishConf -= ambiguityPenalty
				}
				matched = true
			}
		}
		if !matched {
			descParts = append(descParts, cell)
		}
	}

	// A row with neither an identifier nor a price is not a product row.
	if sku == "" && len(prices) == 0 {
		return nil
	}

	description := strings.Join(descParts, " ")
	finishes = dedupeOrdered(finishes)

	fields := make(map[string]model.Field)
	if description != "" {
		fields[model.FieldDescription] = model.Field{Value: description, Confidence: confDescription * confScale}
	}
	if len(prices) > 0 {
		fields[model.FieldPrice] = model.Field{Value: prices[0], Confidence: priceConf * confScale}
	}

	base := model.CandidateRecord{
		Layer:     layer,
		PageIndex: pageIndex,
		RowIndex:  rowIndex,
		Region:    region,
		Prices:    prices,
	}

	// One price, many finishes: behavior is explicit configuration.
	if rp.explodeFinish && sku != "" && len(finishes) > 1 && len(prices) == 1 {
		out := make([]model.CandidateRecord, 0, len(finishes))
		for _, fin := range finishes {
			c := base
			c.NaturalKey = sku + "-" + fin
			c.Fields = cloneFields(fields)
			c.Fields[model.FieldFinish] = model.Field{Value: fin, Confidence: finishConf * confScale}
			c.Confidence = rowConfidence(c.Fields, sku != "", skuConf*confScale)
			out = append(out, c)
		}
		return out
	}

	if len(finishes) > 0 {
		fields[model.FieldFinish] = model.Field{Value: strings.Join(finishes, " / "), Confidence: finishConf * confScale}
	}

	c := base
	c.Fields = fields
	if sku != "" {
		c.NaturalKey = sku
	} else {
		c.NaturalKey = surrogateKey(pageIndex, rowIndex, description)
		c.Surrogate = true
	}
	c.Confidence = rowConfidence(fields, sku != "", skuConf*confScale)
	return []model.CandidateRecord{c}
}

// rowConfidence is the documented aggregate for one candidate: field
// completeness (identifier, price, description-or-finish) scaled by the mean
// confidence of the fields actually present. Deterministic and pure; the
// merge stage builds on it.
func rowConfidence(fields map[string]model.Field, hasSKU bool, skuConf float64) float64 {
	var present, expected float64 = 0, 3
	var confSum, confN float64

	if hasSKU {
		present++
		confSum += skuConf
		confN++
	}
	if f, ok := fields[model.FieldPrice]; ok {
		present++
		confSum += f.Confidence
		confN++
	}
	if f, ok := fields[model.FieldDescription]; ok {
		present++
		confSum += f.Confidence
		confN++
	} else if f, ok := fields[model.FieldFinish]; ok {
		present++
		confSum += f.Confidence
		confN++
	}

	if confN == 0 {
		return 0
	}
	return (present / expected) * (confSum / confN)
}

// surrogateKey names rows that carry no SKU-shaped token. Keyed to page and
// row so surrogate rows never merge across pages.
func surrogateKey(pageIndex, rowIndex int, description string) string {
	h := fnv.New32a()
	h.Write([]byte(description))
	return fmt.Sprintf("~p%dr%d-%08x", pageIndex, rowIndex, h.Sum32())
}

// finishOnlyCell reports whether every token in the cell is a finish code or
// list punctuation.
func finishOnlyCell(v *pattern.Vocabulary, cell string) bool {
	cleaned := strings.NewReplacer("/", " ", ",", " ").Replace(cell)
	toks := strings.Fields(cleaned)
	if len(toks) == 0 {
		return false
	}
	for _, tok := range toks {
		if _, ok := pattern.MatchFinish(v, tok); !ok {
			return false
		}
	}
	return true
}

func dedupeOrdered(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func cloneFields(fields map[string]model.Field) map[string]model.Field {
	out := make(map[string]model.Field, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

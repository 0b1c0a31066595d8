// Package model holds the shared domain types: extraction layers, candidate
// and product records, page state, and run metadata.
package model

// Layer identifies which extraction strategy produced a candidate.
type Layer string

const (
	// Layer1 is native text and recovered rows.
	Layer1 Layer = "layer1"
	// Layer2 is geometric table detection over glyph positions.
	Layer2 Layer = "layer2"
	// Layer3 is the vision detector plus OCR transcription.
	Layer3 Layer = "layer3"
	// LayerOverride is a manufacturer-specific parser.
	LayerOverride Layer = "override"
)

// Priority orders layers for merge conflicts. A higher layer only ran
// because the lower ones demonstrably underperformed on that page, so its
// candidates win disagreements outright.
func (l Layer) Priority() int {
	switch l {
	case LayerOverride:
		return 4
	case Layer3:
		return 3
	case Layer2:
		return 2
	case Layer1:
		return 1
	default:
		return 0
	}
}

// Reliability is the per-field trust in the layer's mechanics, independent of
// merge priority: native text is read exactly, OCR guesses at glyphs.
func (l Layer) Reliability() float64 {
	switch l {
	case LayerOverride:
		return 1.0
	case Layer1:
		return 0.95
	case Layer2:
		return 0.85
	case Layer3:
		return 0.75
	default:
		return 0.5
	}
}

// Canonical field keys. Overrides may add manufacturer-specific keys beyond
// these.
const (
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldFinish      = "finish"
	FieldSize        = "size"
	FieldOptions     = "options"
)

// Field is one extracted value with its own confidence.
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Region is a bounding box in PDF points, bottom-origin.
type Region struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// CandidateRecord is one product row as a single layer saw it, before
// merging. NaturalKey is the SKU when the row carried one; otherwise a
// page-and-row surrogate so the row is kept rather than dropped.
type CandidateRecord struct {
	NaturalKey string           `json:"natural_key"`
	Surrogate  bool             `json:"surrogate,omitempty"`
	Fields     map[string]Field `json:"fields"`
	// Prices holds every monetary value the row carried, in encounter order.
	// Fields[FieldPrice] is always Prices[0].
	Prices     []string `json:"prices,omitempty"`
	Layer      Layer    `json:"layer"`
	PageIndex  int      `json:"page_index"`
	RowIndex   int      `json:"row_index"`
	Region     Region   `json:"region"`
	Confidence float64  `json:"confidence"`
}

// ProvenanceEntry records one candidate's contribution to a merged record.
// Every contributor is retained, not just the winner.
type ProvenanceEntry struct {
	Layer      Layer            `json:"layer"`
	PageIndex  int              `json:"page_index"`
	RowIndex   int              `json:"row_index"`
	Region     Region           `json:"region"`
	Confidence float64          `json:"confidence"`
	Fields     map[string]Field `json:"fields,omitempty"`
}

// ProductRecord is one merged, deduplicated product with full provenance.
type ProductRecord struct {
	NaturalKey string           `json:"natural_key"`
	Surrogate  bool             `json:"surrogate,omitempty"`
	Fields     map[string]Field `json:"fields"`
	Prices     []string         `json:"prices,omitempty"`
	// PageIndex is the winning candidate's page.
	PageIndex int `json:"page_index"`
	// Layers lists every contributing layer, highest priority first.
	Layers     []Layer           `json:"layers"`
	Provenance []ProvenanceEntry `json:"provenance"`
	Confidence float64           `json:"confidence"`
}

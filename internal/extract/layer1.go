package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

// FastExtractor is layer 1: native text and recovered rows, no raster, runs
// on every page. It parses the page two ways and unions the results without
// discarding either; merge reconciles the duplicates document-wide.
type FastExtractor struct {
	parser *RowParser
}

// NewFastExtractor creates the layer 1 strategy.
func NewFastExtractor(parser *RowParser) *FastExtractor {
	return &FastExtractor{parser: parser}
}

// Layer implements Strategy.
func (e *FastExtractor) Layer() model.Layer { return model.Layer1 }

// columnGapRe splits raw text lines on runs of two or more spaces, the
// visual alignment print layouts use instead of table markup.
var columnGapRe = regexp.MustCompile(`\s{2,}`)

// Attempt implements Strategy. Cheap by construction: only embedded text and
// glyph geometry, never rasterization.
func (e *FastExtractor) Attempt(ctx context.Context, page *pdfio.PageContext) ([]model.CandidateRecord, model.YieldSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.YieldSummary{}, err
	}

	var candidates []model.CandidateRecord

	// Pass 1: positioned rows recovered from glyph geometry.
	for i, row := range page.NativeRows() {
		candidates = append(candidates,
			e.parser.Parse(row.Cells, model.Layer1, page.Index(), i, row.Region, 1.0)...)
	}

	// Pass 2: raw text lines split on visual alignment. Catches catalogs
	// whose content streams defeat positioned extraction.
	lines := strings.Split(page.Text(), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cells := columnGapRe.Split(line, -1)
		candidates = append(candidates,
			e.parser.Parse(cells, model.Layer1, page.Index(), textRowOffset+i, model.Region{}, 1.0)...)
	}

	return candidates, model.Summarize(candidates), nil
}

// textRowOffset keeps raw-text row indices disjoint from positioned-row
// indices so surrogate keys from the two passes cannot collide.
const textRowOffset = 10000

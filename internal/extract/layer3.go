package extract

import (
	"context"
	"image"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/ocr"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
	"github.com/catalog-group/pricebook-cli/internal/vision"
)

// VisionExtractor is layer 3: an ML table-region detector over the page
// raster, OCR transcription inside each detected box, and row assembly from
// the transcribed words. It is 10-50x costlier per page than the other
// layers and runs only on pages the policy marked failed.
type VisionExtractor struct {
	detector *vision.Detector
	pool     *ocr.Pool
	parser   *RowParser
}

// NewVisionExtractor creates the layer 3 strategy.
func NewVisionExtractor(detector *vision.Detector, pool *ocr.Pool, parser *RowParser) *VisionExtractor {
	return &VisionExtractor{detector: detector, pool: pool, parser: parser}
}

// Layer implements Strategy.
func (e *VisionExtractor) Layer() model.Layer { return model.Layer3 }

// Ready reports whether the shared model loaded. Checked once by the
// pipeline before the run; a ModelUnavailable error disables layer 3 with a
// run-level warning instead of failing pages one by one.
func (e *VisionExtractor) Ready() error {
	return e.detector.Ready()
}

// Close releases the shared detector session. The OCR pool is owned by the
// pipeline and closed there.
func (e *VisionExtractor) Close() {
	e.detector.Close()
}

// Attempt implements Strategy.
func (e *VisionExtractor) Attempt(ctx context.Context, page *pdfio.PageContext) ([]model.CandidateRecord, model.YieldSummary, error) {
	raster := page.Raster()
	if raster == nil {
		return nil, model.YieldSummary{}, nil
	}

	boxes, err := e.detector.Detect(ctx, raster)
	if err != nil {
		return nil, model.YieldSummary{}, err
	}

	var candidates []model.CandidateRecord
	rowIndex := 0

	for _, box := range boxes {
		words, err := e.pool.Words(ctx, raster.SubImage(box.Rect))
		if err != nil {
			// One unreadable region never fails the page, let alone the run.
			zap.L().Warn("layer3: ocr failed for region",
				zap.Int("page", page.Index()),
				zap.Error(err),
			)
			continue
		}

		for _, line := range assembleRows(words, page.RasterDPI()) {
			scale := box.Confidence * line.confidence
			region := pixelRegion(line.bounds.Add(box.Rect.Min), raster.Bounds().Dy(), page.RasterDPI())
			candidates = append(candidates,
				e.parser.Parse(line.cells, model.Layer3, page.Index(), rowIndex, region, scale)...)
			rowIndex++
		}
	}

	return candidates, model.Summarize(candidates), nil
}

// ocrRow is one assembled line of OCR cells with its pixel bounds and the
// mean word confidence.
type ocrRow struct {
	cells      []string
	bounds     image.Rectangle
	confidence float64
}

// assembleRows clusters OCR words into rows by vertical center and splits
// each row into cells on wide horizontal gaps, mirroring what the native
// row recovery does in point space.
func assembleRows(words []ocr.Word, dpi int) []ocrRow {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]ocr.Word, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		ci := sorted[i].Box.Min.Y + sorted[i].Box.Dy()/2
		cj := sorted[j].Box.Min.Y + sorted[j].Box.Dy()/2
		if ci != cj {
			return ci < cj
		}
		return sorted[i].Box.Min.X < sorted[j].Box.Min.X
	})

	rowTolerancePx := medianHeight(sorted) / 2
	if rowTolerancePx < 2 {
		rowTolerancePx = 2
	}
	// The same column-gap threshold the point-space recovery uses, in pixels.
	cellGapPx := int(minCellGapPts * float64(dpi) / 72.0)

	var rows []ocrRow
	var line []ocr.Word
	flush := func() {
		if len(line) == 0 {
			return
		}
		rows = append(rows, buildOCRRow(line, cellGapPx))
		line = nil
	}

	for _, w := range sorted {
		if len(line) > 0 {
			prev := line[0].Box.Min.Y + line[0].Box.Dy()/2
			cur := w.Box.Min.Y + w.Box.Dy()/2
			if cur-prev > rowTolerancePx {
				flush()
			}
		}
		line = append(line, w)
	}
	flush()

	return rows
}

// minCellGapPts matches the native-row column threshold in pdfio.
const minCellGapPts = 9.0

func buildOCRRow(line []ocr.Word, cellGapPx int) ocrRow {
	sort.Slice(line, func(i, j int) bool { return line[i].Box.Min.X < line[j].Box.Min.X })

	row := ocrRow{bounds: line[0].Box}
	var cell strings.Builder
	cell.WriteString(line[0].Text)
	prevRight := line[0].Box.Max.X

	var confSum float64
	confSum = line[0].Confidence

	for _, w := range line[1:] {
		if w.Box.Min.X-prevRight > cellGapPx {
			row.cells = append(row.cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		} else if cell.Len() > 0 {
			cell.WriteString(" ")
		}
		cell.WriteString(w.Text)
		if w.Box.Max.X > prevRight {
			prevRight = w.Box.Max.X
		}
		row.bounds = row.bounds.Union(w.Box)
		confSum += w.Confidence
	}
	row.cells = append(row.cells, strings.TrimSpace(cell.String()))
	row.confidence = confSum / float64(len(line))
	return row
}

func medianHeight(words []ocr.Word) int {
	hs := make([]int, len(words))
	for i, w := range words {
		hs[i] = w.Box.Dy()
	}
	sort.Ints(hs)
	return hs[len(hs)/2]
}

// pixelRegion converts raster-pixel bounds to bottom-origin PDF points.
func pixelRegion(r image.Rectangle, rasterHeight, dpi int) model.Region {
	if dpi <= 0 {
		return model.Region{}
	}
	pt := 72.0 / float64(dpi)
	heightPt := float64(rasterHeight) * pt
	return model.Region{
		X0: float64(r.Min.X) * pt,
		Y0: heightPt - float64(r.Max.Y)*pt,
		X1: float64(r.Max.X) * pt,
		Y1: heightPt - float64(r.Min.Y)*pt,
	}
}

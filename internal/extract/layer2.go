package extract

import (
	"context"
	"image"
	"sort"
	"strings"

	"github.com/catalog-group/pricebook-cli/internal/model"
	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

// GridExtractor is layer 2: geometric table detection for pages layer 1
// found weak. Bordered (ruled-grid) detection runs first; borderless pages
// fall back to whitespace-alignment column detection. Either way the grid
// cells flow through the same row parser as layer 1.
type GridExtractor struct {
	parser *RowParser
}

// NewGridExtractor creates the layer 2 strategy.
func NewGridExtractor(parser *RowParser) *GridExtractor {
	return &GridExtractor{parser: parser}
}

// Layer implements Strategy.
func (e *GridExtractor) Layer() model.Layer { return model.Layer2 }

// Detection tuning. Tolerances are in PDF points.
const (
	// minGridRows/Cols reject degenerate grids.
	minGridRows = 2
	minGridCols = 2
	// columnTolerance clusters fragment left edges into column boundaries.
	columnTolerance = 4.0
	// minColumnSupport is how many rows must share a boundary before it
	// counts as a column.
	minColumnSupport = 3
	// ruledLineCoverage is the fraction of a raster row/column that must be
	// dark before it reads as a ruled line.
	ruledLineCoverage = 0.5
	// darkThreshold is the grayscale cutoff for "ink".
	darkThreshold = 128
)

// Attempt implements Strategy. Invoking it materializes the page raster;
// that is the cost the escalation policy accepted by flagging the page weak.
func (e *GridExtractor) Attempt(ctx context.Context, page *pdfio.PageContext) ([]model.CandidateRecord, model.YieldSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.YieldSummary{}, err
	}

	raster := page.Raster()
	frags := page.Fragments()
	if len(frags) == 0 {
		// Pure scans carry no glyph geometry; only layer 3 can read them.
		return nil, model.YieldSummary{}, nil
	}

	var rows []gridRow
	var confScale float64

	if grid := detectRuledGrid(raster, page.RasterDPI()); grid != nil {
		rows = grid.assign(frags)
		confScale = 0.95
	}
	if len(rows) == 0 {
		var occupancy float64
		rows, occupancy = whitespaceRows(frags)
		// Borderless grids are softer evidence; occupancy is the usual
		// tell between a true table and incidentally aligned prose.
		confScale = 0.6 + 0.35*occupancy
	}

	var candidates []model.CandidateRecord
	for i, row := range rows {
		candidates = append(candidates,
			e.parser.Parse(row.cells, model.Layer2, page.Index(), i, row.region, confScale)...)
	}

	return candidates, model.Summarize(candidates), nil
}

// gridRow is one assembled row of cell texts with its bounding region.
type gridRow struct {
	cells  []string
	region model.Region
}

// ruledGrid holds detected grid boundaries in PDF points. Ys descend (top of
// page first) to match the bottom-origin coordinate system.
type ruledGrid struct {
	xs []float64
	ys []float64
}

// detectRuledGrid scans the raster for long horizontal and vertical ink runs
// and converts them to grid boundaries in point coordinates. Returns nil
// when the page has no usable ruled grid.
func detectRuledGrid(raster *image.RGBA, dpi int) *ruledGrid {
	if raster == nil || dpi <= 0 {
		return nil
	}
	b := raster.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	dark := func(x, y int) bool {
		i := (y-b.Min.Y)*raster.Stride + (x-b.Min.X)*4
		r, g, bl := raster.Pix[i], raster.Pix[i+1], raster.Pix[i+2]
		// Integer luma approximation.
		return (299*int(r)+587*int(g)+114*int(bl))/1000 < darkThreshold
	}

	var hLines []int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		count := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if dark(x, y) {
				count++
			}
		}
		if float64(count) >= ruledLineCoverage*float64(w) {
			hLines = append(hLines, y)
		}
	}

	var vLines []int
	for x := b.Min.X; x < b.Max.X; x++ {
		count := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if dark(x, y) {
				count++
			}
		}
		if float64(count) >= ruledLineCoverage*float64(h) {
			vLines = append(vLines, x)
		}
	}

	hs := collapseRuns(hLines)
	vs := collapseRuns(vLines)
	if len(hs) < minGridRows+1 || len(vs) < minGridCols+1 {
		return nil
	}

	// Raster pixels → PDF points; raster Y grows downward, points upward.
	ptPerPx := 72.0 / float64(dpi)
	pageHeightPt := float64(h) * ptPerPx

	grid := &ruledGrid{}
	for _, x := range vs {
		grid.xs = append(grid.xs, float64(x-b.Min.X)*ptPerPx)
	}
	for _, y := range hs {
		grid.ys = append(grid.ys, pageHeightPt-float64(y-b.Min.Y)*ptPerPx)
	}
	sort.Float64s(grid.xs)
	sort.Sort(sort.Reverse(sort.Float64Slice(grid.ys)))
	return grid
}

// collapseRuns merges consecutive pixel indices (a 2px-thick rule is one
// line) into their midpoints.
func collapseRuns(indices []int) []int {
	if len(indices) == 0 {
		return nil
	}
	var out []int
	start, prev := indices[0], indices[0]
	for _, v := range indices[1:] {
		if v == prev+1 {
			prev = v
			continue
		}
		out = append(out, (start+prev)/2)
		start, prev = v, v
	}
	out = append(out, (start+prev)/2)
	return out
}

// assign places fragments into grid cells by their center point and
// assembles one row of cell texts per grid row.
func (g *ruledGrid) assign(frags []pdfio.Fragment) []gridRow {
	nRows := len(g.ys) - 1
	nCols := len(g.xs) - 1
	cells := make([][]strings.Builder, nRows)
	regions := make([]model.Region, nRows)
	filled := make([]bool, nRows)
	for i := range cells {
		cells[i] = make([]strings.Builder, nCols)
	}

	for _, f := range frags {
		cx := f.X + f.W/2
		cy := f.Y + f.H/2

		row, col := -1, -1
		for i := 0; i < nRows; i++ {
			if cy <= g.ys[i] && cy >= g.ys[i+1] {
				row = i
				break
			}
		}
		for j := 0; j < nCols; j++ {
			if cx >= g.xs[j] && cx <= g.xs[j+1] {
				col = j
				break
			}
		}
		if row < 0 || col < 0 {
			continue
		}

		if cells[row][col].Len() > 0 {
			cells[row][col].WriteString(" ")
		}
		cells[row][col].WriteString(f.Text)

		r := &regions[row]
		if !filled[row] {
			*r = model.Region{X0: f.X, Y0: f.Y, X1: f.Right(), Y1: f.Y + f.H}
			filled[row] = true
		} else {
			if f.X < r.X0 {
				r.X0 = f.X
			}
			if f.Right() > r.X1 {
				r.X1 = f.Right()
			}
			if f.Y < r.Y0 {
				r.Y0 = f.Y
			}
			if f.Y+f.H > r.Y1 {
				r.Y1 = f.Y + f.H
			}
		}
	}

	var rows []gridRow
	for i := 0; i < nRows; i++ {
		if !filled[i] {
			continue
		}
		row := gridRow{region: regions[i]}
		for j := 0; j < nCols; j++ {
			row.cells = append(row.cells, strings.TrimSpace(cells[i][j].String()))
		}
		rows = append(rows, row)
	}
	return rows
}

// whitespaceRows recovers a borderless table by clustering fragment left
// edges into page-global column boundaries, then re-splitting each baseline
// against those boundaries. Returns the rows and the cell occupancy ratio.
func whitespaceRows(frags []pdfio.Fragment) ([]gridRow, float64) {
	boundaries := columnBoundaries(frags)
	if len(boundaries) < minGridCols {
		return nil, 0
	}

	groups := pdfio.GroupBaselines(frags)
	if len(groups) < minGridRows {
		return nil, 0
	}

	var rows []gridRow
	var filledCells int
	for _, line := range groups {
		cells := make([]strings.Builder, len(boundaries))
		region := model.Region{X0: line[0].X, Y0: line[0].Y, X1: line[0].Right(), Y1: line[0].Y + line[0].H}

		for _, f := range line {
			col := 0
			for j := len(boundaries) - 1; j >= 0; j-- {
				if f.X >= boundaries[j]-columnTolerance {
					col = j
					break
				}
			}
			if cells[col].Len() > 0 {
				cells[col].WriteString(" ")
			}
			cells[col].WriteString(f.Text)

			if f.X < region.X0 {
				region.X0 = f.X
			}
			if f.Right() > region.X1 {
				region.X1 = f.Right()
			}
			if f.Y < region.Y0 {
				region.Y0 = f.Y
			}
			if f.Y+f.H > region.Y1 {
				region.Y1 = f.Y + f.H
			}
		}

		row := gridRow{region: region}
		for j := range cells {
			text := strings.TrimSpace(cells[j].String())
			if text != "" {
				filledCells++
			}
			row.cells = append(row.cells, text)
		}
		rows = append(rows, row)
	}

	occupancy := float64(filledCells) / float64(len(rows)*len(boundaries))
	return rows, occupancy
}

// columnBoundaries clusters fragment left edges; a boundary needs support
// from several rows before it counts as a column.
func columnBoundaries(frags []pdfio.Fragment) []float64 {
	if len(frags) == 0 {
		return nil
	}
	xs := make([]float64, 0, len(frags))
	for _, f := range frags {
		xs = append(xs, f.X)
	}
	sort.Float64s(xs)

	var boundaries []float64
	clusterStart := xs[0]
	clusterSum := xs[0]
	clusterN := 1

	flush := func() {
		if clusterN >= minColumnSupport {
			boundaries = append(boundaries, clusterSum/float64(clusterN))
		}
	}

	for _, x := range xs[1:] {
		if x-clusterStart > columnTolerance {
			flush()
			clusterStart, clusterSum, clusterN = x, x, 1
			continue
		}
		clusterSum += x
		clusterN++
	}
	flush()

	return boundaries
}

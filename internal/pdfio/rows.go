package pdfio

import (
	"sort"
	"strings"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

// Native row recovery: fragments sharing a baseline become one row, and
// horizontal gaps wider than a column threshold split the row into cells.
// This is what stands in for real table markup, which print-oriented PDFs
// almost never carry.

const (
	// rowTolerance merges fragments whose baselines differ by less than this
	// many points into one row.
	rowTolerance = 3.0
	// minCellGap is the smallest horizontal whitespace treated as a column
	// boundary, in points.
	minCellGap = 9.0
)

// Row is one recovered table row with its cell texts and bounding region.
type Row struct {
	Cells  []string
	Region model.Region
	Y      float64
}

// NativeRows groups the page's positioned fragments into rows and cells.
// Pages without positioned text return nil.
func (p *PageContext) NativeRows() []Row {
	return RowsFromFragments(p.Fragments())
}

// RowsFromFragments converts positioned fragments into rows. Exported so the
// structured table detector can reuse the same grouping on grid-filtered
// fragment subsets.
func RowsFromFragments(frags []Fragment) []Row {
	groups := GroupBaselines(frags)
	if len(groups) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(groups))
	for _, line := range groups {
		rows = append(rows, buildRow(line))
	}
	return rows
}

// GroupBaselines clusters fragments sharing a baseline, top of page first
// (PDF Y grows upward). The structured table detector re-splits these groups
// against page-global column boundaries instead of local gaps.
func GroupBaselines(frags []Fragment) [][]Fragment {
	if len(frags) == 0 {
		return nil
	}

	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var groups [][]Fragment
	var line []Fragment
	flush := func() {
		if len(line) == 0 {
			return
		}
		groups = append(groups, line)
		line = nil
	}

	for _, f := range sorted {
		if len(line) > 0 && line[0].Y-f.Y > rowTolerance {
			flush()
		}
		line = append(line, f)
	}
	flush()

	return groups
}

// buildRow splits one baseline's fragments into cells on wide gaps.
func buildRow(line []Fragment) Row {
	sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })

	row := Row{Y: line[0].Y}
	region := model.Region{X0: line[0].X, Y0: line[0].Y, X1: line[0].Right(), Y1: line[0].Y}

	var cell strings.Builder
	cell.WriteString(line[0].Text)
	prevRight := line[0].Right()

	for _, f := range line[1:] {
		gap := f.X - prevRight
		switch {
		case gap > minCellGap:
			row.Cells = append(row.Cells, strings.TrimSpace(cell.String()))
			cell.Reset()
			cell.WriteString(f.Text)
		case gap > 0.5:
			cell.WriteString(" ")
			cell.WriteString(f.Text)
		default:
			cell.WriteString(f.Text)
		}
		if f.Right() > prevRight {
			prevRight = f.Right()
		}
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
	row.Cells = append(row.Cells, strings.TrimSpace(cell.String()))
	row.Region = region
	return row
}

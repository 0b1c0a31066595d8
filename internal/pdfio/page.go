package pdfio

import (
	"image"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

// Fragment is one positioned text run in PDF points. Y grows upward from the
// page bottom, matching the PDF coordinate system.
type Fragment struct {
	Text string
	X    float64
	Y    float64
	W    float64
	H    float64
}

// Right returns the fragment's right edge.
func (f Fragment) Right() float64 { return f.X + f.W }

// PageContext carries one page's lazily materialized content. A page is
// owned by exactly one worker during a run, but raster and text share the
// renderer handle, so materialization is still guarded.
type PageContext struct {
	doc   *Document
	index int

	// Synthetic pages (fixtures) carry their own dpi and raster supplier.
	dpi      int
	rasterFn func() (*image.RGBA, error)

	textOnce sync.Once
	text     string

	fragsOnce sync.Once
	frags     []Fragment

	rasterOnce sync.Once
	raster     *image.RGBA

	mu          sync.Mutex
	rasterTried bool
	degradedErr error
	warnings    []string
}

// Index returns the 0-based page index.
func (p *PageContext) Index() int { return p.index }

// RasterDPI returns the DPI rasterization uses on this page.
func (p *PageContext) RasterDPI() int {
	if p.doc != nil {
		return p.doc.RasterDPI()
	}
	return p.dpi
}

// Text returns the page's embedded text, extracting it on first use.
// Extraction failure degrades the page and returns empty text.
func (p *PageContext) Text() string {
	p.textOnce.Do(func() {
		t, err := p.doc.pageText(p.index)
		if err != nil {
			p.markDegraded("embedded text unreadable", err)
			return
		}
		p.text = t
	})
	return p.text
}

// Fragments returns positioned text runs, loading them on first use. Pages
// without parseable content streams return nil without degrading the page:
// raw text may still carry the rows.
func (p *PageContext) Fragments() []Fragment {
	p.fragsOnce.Do(func() {
		frags, err := p.doc.pageFragments(p.index)
		if err != nil {
			p.markDegraded("positioned text unreadable", err)
			return
		}
		p.frags = frags
	})
	return p.frags
}

// Raster renders the page at the configured DPI. It is materialized only
// when layer 2 or 3 actually runs, never eagerly.
func (p *PageContext) Raster() *image.RGBA {
	p.rasterOnce.Do(func() {
		p.mu.Lock()
		p.rasterTried = true
		p.mu.Unlock()

		render := p.rasterFn
		if render == nil {
			render = func() (*image.RGBA, error) { return p.doc.pageImage(p.index) }
		}
		img, err := render()
		if err != nil {
			p.markDegraded("rasterization failed", err)
			return
		}
		p.raster = img
	})
	return p.raster
}

// RasterMaterialized reports whether rasterization was ever requested. Used
// by tests to assert the lazy-raster invariant.
func (p *PageContext) RasterMaterialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rasterTried
}

// Degraded reports whether any per-page extraction failed.
func (p *PageContext) Degraded() bool {
	return p.DegradedError() != nil
}

// DegradedError returns the first degradation, wrapped around
// model.ErrPageDegraded, or nil for a clean page.
func (p *PageContext) DegradedError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degradedErr
}

// Warnings returns the accumulated per-page warnings.
func (p *PageContext) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.warnings))
	copy(out, p.warnings)
	return out
}

func (p *PageContext) markDegraded(what string, err error) {
	wrapped := eris.Wrapf(model.ErrPageDegraded, "pdfio: page %d: %s: %v", p.index, what, err)
	p.mu.Lock()
	if p.degradedErr == nil {
		p.degradedErr = wrapped
	}
	p.warnings = append(p.warnings, what)
	p.mu.Unlock()
	zap.L().Warn("pdfio: page degraded",
		zap.Int("page", p.index),
		zap.Error(wrapped),
	)
}

// Package pdfio loads price-book PDFs and exposes lazy per-page content:
// embedded text, positioned text fragments, and on-demand rasterization.
//
// Rendering goes through go-fitz (MuPDF); positioned text comes from
// ledongthuc/pdf, which preserves glyph geometry the renderer discards.
// A single bad page never fails the document: it is marked degraded and the
// pipeline records a warning.
package pdfio

import (
	"image"
	"os"
	"sync"

	"github.com/gen2brain/go-fitz"
	ltpdf "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

// Document is an open price-book PDF. It holds the underlying handles for
// the duration of one run and must be closed on every exit path.
type Document struct {
	path string
	dpi  int

	// MuPDF contexts are not safe for concurrent use; all go-fitz calls are
	// serialized through mu.
	mu sync.Mutex
	fz *fitz.Document

	file   *os.File
	reader *ltpdf.Reader

	pages []*PageContext
}

// Open opens the document at path. It fails with ErrDocumentUnreadable only
// when the whole document cannot be opened; per-page problems surface later
// as degraded pages.
func Open(path string, rasterDPI int) (*Document, error) {
	fz, err := fitz.New(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDocumentUnreadable, "pdfio: open %s: %v", path, err)
	}

	doc := &Document{
		path: path,
		dpi:  rasterDPI,
		fz:   fz,
	}

	// Positioned text is best-effort: some generators emit streams go-fitz
	// renders fine but ledongthuc/pdf cannot parse. Those documents still
	// flow through on raw text and raster alone.
	file, reader, err := ltpdf.Open(path)
	if err != nil {
		zap.L().Warn("pdfio: positioned text unavailable",
			zap.String("path", path),
			zap.Error(err),
		)
	} else {
		doc.file = file
		doc.reader = reader
	}

	n := fz.NumPage()
	doc.pages = make([]*PageContext, n)
	for i := 0; i < n; i++ {
		doc.pages[i] = &PageContext{doc: doc, index: i}
	}

	return doc, nil
}

// Path returns the document path.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages. Zero is valid.
func (d *Document) PageCount() int { return len(d.pages) }

// RasterDPI returns the configured rasterization DPI.
func (d *Document) RasterDPI() int { return d.dpi }

// Page returns the context for the 0-based page index.
func (d *Document) Page(i int) *PageContext { return d.pages[i] }

// Close releases all underlying handles.
func (d *Document) Close() error {
	var first error
	d.mu.Lock()
	if d.fz != nil {
		if err := d.fz.Close(); err != nil {
			first = eris.Wrap(err, "pdfio: close renderer")
		}
		d.fz = nil
	}
	d.mu.Unlock()

	if d.file != nil {
		if err := d.file.Close(); err != nil && first == nil {
			first = eris.Wrap(err, "pdfio: close reader")
		}
		d.file = nil
		d.reader = nil
	}
	return first
}

func (d *Document) pageText(i int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fz == nil {
		return "", eris.New("pdfio: document closed")
	}
	return d.fz.Text(i)
}

func (d *Document) pageImage(i int) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fz == nil {
		return nil, eris.New("pdfio: document closed")
	}
	return d.fz.ImageDPI(i, float64(d.dpi))
}

func (d *Document) pageFragments(i int) ([]Fragment, error) {
	if d.reader == nil {
		return nil, nil
	}
	if i < 0 || i >= d.reader.NumPage() {
		return nil, nil
	}

	// ledongthuc/pdf panics on some malformed content streams; a bad page
	// must degrade, not abort the run.
	var frags []Fragment
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("pdfio: content stream panic on page %d: %v", i, r)
			}
		}()
		page := d.reader.Page(i + 1) // 1-based
		if page.V.IsNull() {
			return nil
		}
		content := page.Content()
		frags = make([]Fragment, 0, len(content.Text))
		for _, t := range content.Text {
			if t.S == "" {
				continue
			}
			frags = append(frags, Fragment{
				Text: t.S,
				X:    t.X,
				Y:    t.Y,
				W:    t.W,
				H:    t.FontSize,
			})
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}
	return frags, nil
}

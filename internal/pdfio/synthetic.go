package pdfio

import "image"

// SyntheticPage builds a page context from in-memory content, bypassing any
// underlying document. Extractor and pipeline tests use it as a fixture;
// production pages always come from Open.
func SyntheticPage(index int, text string, frags []Fragment, raster *image.RGBA, dpi int) *PageContext {
	p := &PageContext{index: index, dpi: dpi}
	p.textOnce.Do(func() { p.text = text })
	p.fragsOnce.Do(func() { p.frags = frags })
	p.rasterFn = func() (*image.RGBA, error) { return raster, nil }
	return p
}

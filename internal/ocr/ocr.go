// Package ocr wraps the Tesseract engine (via gosseract) behind a bounded
// pool. A gosseract client is not safe for concurrent use, so each worker
// checks an engine out for the duration of one recognition call.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// Word is one recognized token with its raster-pixel box and engine
// confidence normalized to [0,1].
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Pool is a fixed-size pool of Tesseract engines.
type Pool struct {
	engines chan *gosseract.Client
	size    int
}

// NewPool creates size engines configured for the given languages
// ("eng", "eng+deu", ...).
func NewPool(size int, languages string) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{engines: make(chan *gosseract.Client, size), size: size}

	for i := 0; i < size; i++ {
		client := gosseract.NewClient()
		if languages != "" {
			if err := client.SetLanguage(languages); err != nil {
				client.Close()
				p.Close()
				return nil, eris.Wrapf(err, "ocr: set language %q", languages)
			}
		}
		if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
			client.Close()
			p.Close()
			return nil, eris.Wrap(err, "ocr: set page segmentation mode")
		}
		p.engines <- client
	}
	return p, nil
}

// Close releases every engine currently in the pool.
func (p *Pool) Close() error {
	var first error
	for {
		select {
		case c := <-p.engines:
			if err := c.Close(); err != nil && first == nil {
				first = eris.Wrap(err, "ocr: close engine")
			}
		default:
			return first
		}
	}
}

// Words recognizes all words in img, returning their texts, boxes, and
// confidences. The call blocks until an engine is free or ctx is done.
func (p *Pool) Words(ctx context.Context, img image.Image) ([]Word, error) {
	var client *gosseract.Client
	select {
	case client = <-p.engines:
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "ocr: acquire engine")
	}
	defer func() { p.engines <- client }()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "ocr: encode region")
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, eris.Wrap(err, "ocr: set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: recognize")
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		conf := b.Confidence
		if conf > 1 {
			// Tesseract reports 0-100.
			conf /= 100
		}
		words = append(words, Word{Text: b.Word, Box: b.Box, Confidence: conf})
	}
	return words, nil
}

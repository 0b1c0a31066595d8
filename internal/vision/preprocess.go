package vision

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// letterbox scales img to fit a size×size square preserving aspect ratio,
// padding the remainder. Returns the scaled image plus the scale factor and
// offsets needed to map detections back to source pixels.
func letterbox(img image.Image, size int) (*image.RGBA, float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := float64(size) / float64(w)
	if sh := float64(size) / float64(h); sh < scale {
		scale = sh
	}
	sw := int(float64(w) * scale)
	sh := int(float64(h) * scale)
	padX := (size - sw) / 2
	padY := (size - sh) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	target := image.Rect(padX, padY, padX+sw, padY+sh)
	xdraw.CatmullRom.Scale(dst, target, img, b, xdraw.Src, nil)

	return dst, scale, padX, padY
}

// tensorData converts an RGBA image to normalized CHW float32 data in [0,1],
// the input layout the table detector was exported with.
func tensorData(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 3*w*h)

	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			data[i] = float32(row[x*4]) / 255          // R
			data[plane+i] = float32(row[x*4+1]) / 255  // G
			data[2*plane+i] = float32(row[x*4+2]) / 255 // B
		}
	}
	return data
}

package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterbox_WideImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dst, scale, padX, padY := letterbox(src, 100)

	assert.Equal(t, 100, dst.Bounds().Dx())
	assert.Equal(t, 100, dst.Bounds().Dy())
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.Equal(t, 0, padX)
	assert.Equal(t, 25, padY)
}

func TestLetterbox_TallImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 400))
	_, scale, padX, padY := letterbox(src, 100)

	assert.InDelta(t, 0.25, scale, 1e-9)
	assert.Equal(t, 37, padX)
	assert.Equal(t, 0, padY)
}

func TestTensorData_LayoutAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 0, G: 0, B: 255, A: 255})

	data := tensorData(img)
	require.Len(t, data, 12) // 3 planes of 4 pixels

	// CHW: red plane first.
	assert.InDelta(t, 1.0, data[0], 1e-6) // R at (0,0)
	assert.InDelta(t, 0.0, data[8], 1e-6) // B plane at (0,0)
	assert.InDelta(t, 1.0, data[11], 1e-6) // B at (1,1)
}

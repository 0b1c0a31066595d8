package vision

import (
	"image"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-group/pricebook-cli/internal/config"
	"github.com/catalog-group/pricebook-cli/internal/model"
)

func TestReady_DisabledByConfig(t *testing.T) {
	d := NewDetector(config.VisionConfig{Enabled: false})
	err := d.Ready()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrModelUnavailable))
}

func TestReady_MissingModelFile(t *testing.T) {
	d := NewDetector(config.VisionConfig{
		Enabled:   true,
		ModelPath: "/nonexistent/table-det.onnx",
	})
	err := d.Ready()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrModelUnavailable))

	// Ready is idempotent: the cached result comes back on every call.
	assert.Equal(t, err, d.Ready())
}

func TestDecode(t *testing.T) {
	d := &Detector{cfg: config.VisionConfig{MinConfidence: 0.5}}
	bounds := image.Rect(0, 0, 1000, 1400)

	// Two detections at scale 0.5 with a 20px x-pad; the second is below the
	// confidence floor.
	data := []float32{
		120, 50, 320, 250, 0.91, 0,
		400, 400, 500, 500, 0.20, 0,
	}

	boxes := d.decode(data, 0.5, 20, 0, bounds)
	require.Len(t, boxes, 1)
	assert.Equal(t, image.Rect(200, 100, 600, 500), boxes[0].Rect)
	assert.InDelta(t, 0.91, boxes[0].Confidence, 1e-6)
}

func TestDecode_ClampsToBounds(t *testing.T) {
	d := &Detector{cfg: config.VisionConfig{MinConfidence: 0.5}}
	bounds := image.Rect(0, 0, 100, 100)

	data := []float32{-10, -10, 50, 50, 0.8, 0}
	boxes := d.decode(data, 1, 0, 0, bounds)
	require.Len(t, boxes, 1)
	assert.Equal(t, image.Rect(0, 0, 50, 50), boxes[0].Rect)

	// A detection entirely outside the raster is dropped.
	data = []float32{200, 200, 300, 300, 0.8, 0}
	assert.Empty(t, d.decode(data, 1, 0, 0, bounds))
}

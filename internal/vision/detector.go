// Package vision runs a pretrained table-region detection model over page
// rasters. The ONNX model and the onnxruntime shared library both load from
// local storage; no network is ever touched.
package vision

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/catalog-group/pricebook-cli/internal/config"
	"github.com/catalog-group/pricebook-cli/internal/model"
)

// Detector export contract: one image input ("images", 1x3xSxS, RGB in
// [0,1]) and one post-NMS output ("output", Nx6 rows of
// x1,y1,x2,y2,score,class in input pixels).
const (
	inputName  = "images"
	outputName = "output"
	boxStride  = 6
)

// Box is one detected table region in source-raster pixels.
type Box struct {
	Rect       image.Rectangle
	Confidence float64
}

// Detector wraps one ONNX session, initialized lazily on first use and
// shared by every page worker for the rest of the run. onnxruntime sessions
// are safe for concurrent Run calls, so inference needs no further guard.
type Detector struct {
	cfg config.VisionConfig

	once    sync.Once
	initErr error
	session *ort.DynamicAdvancedSession
}

// NewDetector creates a detector; nothing loads until the first Detect call.
func NewDetector(cfg config.VisionConfig) *Detector {
	return &Detector{cfg: cfg}
}

func (d *Detector) init() {
	if !d.cfg.Enabled {
		d.initErr = eris.Wrap(model.ErrModelUnavailable, "vision: disabled by configuration")
		return
	}
	if _, err := os.Stat(d.cfg.ModelPath); err != nil {
		d.initErr = eris.Wrapf(model.ErrModelUnavailable, "vision: model weights %s: %v", d.cfg.ModelPath, err)
		return
	}

	if d.cfg.RuntimePath != "" {
		ort.SetSharedLibraryPath(d.cfg.RuntimePath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			d.initErr = eris.Wrapf(model.ErrModelUnavailable, "vision: init onnxruntime: %v", err)
			return
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		d.cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		nil,
	)
	if err != nil {
		d.initErr = eris.Wrapf(model.ErrModelUnavailable, "vision: load model %s: %v", d.cfg.ModelPath, err)
		return
	}
	d.session = session

	zap.L().Info("vision: model loaded",
		zap.String("model", d.cfg.ModelPath),
		zap.Int("input_size", d.cfg.InputSize),
	)
}

// Ready forces initialization and reports whether the model is usable.
// A failure is terminal for the run: the caller disables layer 3 and
// records a run-level warning.
func (d *Detector) Ready() error {
	d.once.Do(d.init)
	return d.initErr
}

// Close releases the session. Safe to call when initialization failed.
func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
}

// Detect returns candidate table regions in img with detector confidence,
// filtered by the configured minimum.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "vision: detect")
	}

	size := d.cfg.InputSize
	scaled, scale, padX, padY := letterbox(img, size)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), tensorData(scaled))
	if err != nil {
		return nil, eris.Wrap(err, "vision: build input tensor")
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, eris.Wrap(err, "vision: inference")
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, eris.New("vision: unexpected output tensor type")
	}
	defer out.Destroy()

	return d.decode(out.GetData(), scale, padX, padY, img.Bounds()), nil
}

// decode maps raw detector rows back to source-raster pixel boxes.
func (d *Detector) decode(data []float32, scale float64, padX, padY int, bounds image.Rectangle) []Box {
	var boxes []Box
	for i := 0; i+boxStride <= len(data); i += boxStride {
		score := float64(data[i+4])
		if score < d.cfg.MinConfidence {
			continue
		}
		x0 := int((float64(data[i]) - float64(padX)) / scale)
		y0 := int((float64(data[i+1]) - float64(padY)) / scale)
		x1 := int((float64(data[i+2]) - float64(padX)) / scale)
		y1 := int((float64(data[i+3]) - float64(padY)) / scale)

		rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		boxes = append(boxes, Box{Rect: rect, Confidence: score})
	}
	return boxes
}

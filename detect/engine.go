package detect

import (
	"fmt"
	"image"

	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/up-zero/gotool/convertutil"
)

// Engine runs a YOLO detection model. It understands the two common output
// head layouts: the anchor head [1, 4+C, N] that requires NMS, and the
// end-to-end head [1, N, 6] that is already suppressed.
type Engine struct {
	session *ort.Session
	config  Config
}

// NewEngine initialises the ONNX Runtime and creates the inference session.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath must be set")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultConfig().InputSize
	}
	if cfg.NumClasses <= 0 {
		cfg.NumClasses = DefaultConfig().NumClasses
	}

	oc := new(OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("failed to copy the engine options: %w", err)
	}
	if err := oc.New(); err != nil {
		return nil, err
	}

	session, err := oc.OnnxEngine.NewSession(cfg.ModelPath, oc.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create the ONNX session: %w", err)
	}

	return &Engine{
		session: session,
		config:  cfg,
	}, nil
}

// Destroy releases the session resources.
func (e *Engine) Destroy() {
	if e.session != nil {
		e.session.Destroy()
	}
}

// Predict runs detection inference on img. Results are in pixel coordinates
// of img, ordered by descending score.
func (e *Engine) Predict(img image.Image) ([]Detection, error) {
	inputTensor, params, err := preprocess(img, e.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer inputTensor.Destroy()

	inputValues := map[string]*ort.Value{
		"images": inputTensor,
	}
	outputValues, err := e.session.Run(inputValues)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	outputValue := outputValues["output0"]
	defer outputValue.Destroy()

	data, err := ort.GetTensorData[float32](outputValue)
	if err != nil {
		return nil, fmt.Errorf("failed to read the output tensor: %w", err)
	}
	shape, err := outputValue.GetShape()
	if err != nil {
		return nil, fmt.Errorf("failed to read the output shape: %w", err)
	}

	return e.postprocess(data, shape, params)
}

// postprocess dispatches on the output head layout.
func (e *Engine) postprocess(data []float32, shape []int64, params imageParams) (
		[]Detection, error) {

	switch {
	case len(shape) == 3 && shape[2] == 6:
		// [1, N, 6] end-to-end rows of [x1, y1, x2, y2, score, class].
		return e.decodeEndToEnd(data, params), nil
	case len(shape) == 3:
		// [1, 4+C, N] transposed anchors.
		return e.decodeAnchors(data, int(shape[1]), int(shape[2]), params)
	}
	return nil, fmt.Errorf("unsupported output shape %v", shape)
}

// decodeAnchors parses an anchor head, applies the confidence floor and
// suppresses overlapping boxes.
func (e *Engine) decodeAnchors(data []float32, channels, anchors int, params imageParams) (
		[]Detection, error) {

	expectedChannels := 4 + e.config.NumClasses
	if channels != expectedChannels {
		return nil, fmt.Errorf("output has %d channels, expected %d", channels, expectedChannels)
	}

	var cands []candidate
	for i := 0; i < anchors; i++ {
		// Find the best class score.
		maxScore := float32(0.0)
		classID := -1
		for c := 0; c < e.config.NumClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > maxScore {
				maxScore = score
				classID = c
			}
		}
		if maxScore < e.config.ConfThreshold {
			continue
		}

		// The box is stored as cx, cy, w, h in input-tensor space.
		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		cands = append(cands, candidate{
			origBox: scaleBoxToOriginal(cx-w/2, cy-h/2, cx+w/2, cy+h/2, params),
			score:   maxScore,
			classID: classID,
		})
	}

	keptIndices := nms(cands, e.config.IOUThreshold)
	results := make([]Detection, 0, len(keptIndices))
	for _, idx := range keptIndices {
		cand := cands[idx]
		results = append(results, Detection{
			ClassID: cand.classID,
			Score:   cand.score,
			Box:     cand.origBox,
		})
	}

	return results, nil
}

// decodeEndToEnd parses an end-to-end head. The model output is already
// suppressed and sorted by score.
func (e *Engine) decodeEndToEnd(data []float32, params imageParams) []Detection {
	results := make([]Detection, 0)

	const stride = 6
	numDetections := len(data) / stride

	for i := 0; i < numDetections; i++ {
		offset := i * stride

		// [x1, y1, x2, y2, score, class_id]
		x1 := data[offset+0]
		y1 := data[offset+1]
		x2 := data[offset+2]
		y2 := data[offset+3]
		score := data[offset+4]
		classID := int(data[offset+5])

		if score < e.config.ConfThreshold {
			continue
		}

		results = append(results, Detection{
			ClassID: classID,
			Score:   score,
			Box:     scaleBoxToOriginal(x1, y1, x2, y2, params),
		})
	}

	return results
}

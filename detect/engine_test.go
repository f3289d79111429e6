package detect

import (
	"image"
	"testing"
)

func TestOnnxConfigRequiresLibraryPath(t *testing.T) {
	var cfg OnnxConfig
	if err := cfg.New(); err == nil {
		t.Error("expected an error when OnnxRuntimeLibPath is empty")
	}
}

func TestNewEngineRequiresModelPath(t *testing.T) {
	if _, err := NewEngine(Config{}); err == nil {
		t.Error("expected an error when ModelPath is empty")
	}
}

func TestDefaultLibraryPath(t *testing.T) {
	if DefaultLibraryPath() == "" {
		t.Error("expected a non-empty default library path")
	}
}

func TestComputeIOU(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 image.Rectangle
		want   float32
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1.0},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0.0},
		{"half overlap", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 1.0 / 3.0},
		{"contained", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 5, 10), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeIOU(tt.r1, tt.r2)
			if got < tt.want-1e-6 || got > tt.want+1e-6 {
				t.Errorf("computeIOU(%v, %v) = %v, want %v", tt.r1, tt.r2, got, tt.want)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	cands := []candidate{
		{origBox: image.Rect(0, 0, 100, 100), score: 0.8, classID: 0},
		{origBox: image.Rect(5, 5, 105, 105), score: 0.9, classID: 0},  // overlaps the first
		{origBox: image.Rect(200, 200, 300, 300), score: 0.7, classID: 1},
	}

	kept := nms(cands, 0.5)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept candidates, got %d", len(kept))
	}

	// nms sorts by descending score; the 0.9 box survives, the overlapping
	// 0.8 box is suppressed, the disjoint 0.7 box is kept.
	if cands[kept[0]].score != 0.9 || cands[kept[1]].score != 0.7 {
		t.Errorf("unexpected survivors: %v %v", cands[kept[0]], cands[kept[1]])
	}
}

func TestNMSKeepsAllDisjointBoxes(t *testing.T) {
	cands := []candidate{
		{origBox: image.Rect(0, 0, 10, 10), score: 0.5},
		{origBox: image.Rect(20, 0, 30, 10), score: 0.6},
		{origBox: image.Rect(40, 0, 50, 10), score: 0.7},
	}
	if kept := nms(cands, 0.5); len(kept) != 3 {
		t.Errorf("expected all disjoint boxes to be kept, got %d", len(kept))
	}
}

func TestScaleBoxToOriginal(t *testing.T) {
	// A 1280x960 image scaled to a 640 input gets scale 0.5.
	params := imageParams{origW: 1280, origH: 960, scale: 0.5}

	got := scaleBoxToOriginal(100, 50, 200, 150, params)
	want := image.Rect(200, 100, 400, 300)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Boxes are clipped to the image bounds.
	got = scaleBoxToOriginal(-10, -10, 700, 500, params)
	want = image.Rect(0, 0, 1280, 960)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDecodeEndToEnd(t *testing.T) {
	e := &Engine{config: Config{ConfThreshold: 0.25, InputSize: 640}}
	params := imageParams{origW: 640, origH: 640, scale: 1}

	data := []float32{
		10, 20, 110, 220, 0.9, 2, // kept
		30, 30, 40, 40, 0.1, 0, // below the confidence floor
		50, 60, 150, 160, 0.5, 7, // kept
	}
	results := e.decodeEndToEnd(data, params)
	if len(results) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(results))
	}

	if results[0].ClassID != 2 || results[0].Score != 0.9 ||
			results[0].Box != image.Rect(10, 20, 110, 220) {
		t.Errorf("unexpected first detection: %+v", results[0])
	}
	if results[1].ClassID != 7 || results[1].Box != image.Rect(50, 60, 150, 160) {
		t.Errorf("unexpected second detection: %+v", results[1])
	}
}

func TestDecodeAnchors(t *testing.T) {
	// A minimal anchor head with 2 classes and 3 anchors: [1, 6, 3].
	e := &Engine{config: Config{ConfThreshold: 0.25, IOUThreshold: 0.5, NumClasses: 2}}
	params := imageParams{origW: 640, origH: 640, scale: 1}

	// Channel-major layout: data[c*anchors+i].
	// Anchor 0: box (100, 100, 40, 40), class 1 score 0.9.
	// Anchor 1: box (300, 300, 60, 60), class 0 score 0.6.
	// Anchor 2: below the confidence floor.
	data := []float32{
		100, 300, 500, // cx
		100, 300, 500, // cy
		40, 60, 20, // w
		40, 60, 20, // h
		0.1, 0.6, 0.2, // class 0 scores
		0.9, 0.2, 0.1, // class 1 scores
	}

	results, err := e.decodeAnchors(data, 6, 3, params)
	if err != nil {
		t.Fatalf("decodeAnchors failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(results))
	}

	// Results are ordered by descending score.
	if results[0].ClassID != 1 || results[0].Score != 0.9 ||
			results[0].Box != image.Rect(80, 80, 120, 120) {
		t.Errorf("unexpected first detection: %+v", results[0])
	}
	if results[1].ClassID != 0 || results[1].Score != 0.6 ||
			results[1].Box != image.Rect(270, 270, 330, 330) {
		t.Errorf("unexpected second detection: %+v", results[1])
	}
}

func TestDecodeAnchorsChannelMismatch(t *testing.T) {
	e := &Engine{config: Config{NumClasses: 80}}
	if _, err := e.decodeAnchors(make([]float32, 6*3), 6, 3, imageParams{scale: 1}); err == nil {
		t.Error("expected an error for a channel count mismatch")
	}
}

func TestDecodeAnchorsSuppressesOverlaps(t *testing.T) {
	e := &Engine{config: Config{ConfThreshold: 0.25, IOUThreshold: 0.5, NumClasses: 1}}
	params := imageParams{origW: 640, origH: 640, scale: 1}

	// Two near-identical boxes for the same object; only one survives.
	data := []float32{
		100, 102, // cx
		100, 102, // cy
		40, 40, // w
		40, 40, // h
		0.8, 0.9, // class 0 scores
	}
	results, err := e.decodeAnchors(data, 5, 2, params)
	if err != nil {
		t.Fatalf("decodeAnchors failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 detection after suppression, got %d", len(results))
	}
	if results[0].Score != 0.9 {
		t.Errorf("expected the higher scored box to survive, got %+v", results[0])
	}
}

func TestPostprocessShapeDispatch(t *testing.T) {
	e := &Engine{config: Config{ConfThreshold: 0.25, NumClasses: 2}}
	params := imageParams{origW: 640, origH: 640, scale: 1}

	// End-to-end head.
	data := []float32{10, 10, 20, 20, 0.9, 0}
	results, err := e.postprocess(data, []int64{1, 1, 6}, params)
	if err != nil || len(results) != 1 {
		t.Errorf("end-to-end dispatch failed: %v, %v", results, err)
	}

	// Unsupported shape.
	if _, err := e.postprocess(data, []int64{1, 6}, params); err == nil {
		t.Error("expected an error for an unsupported output shape")
	}
}

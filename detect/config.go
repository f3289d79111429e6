// Package detect runs YOLO object detection models through ONNX Runtime.
package detect

import "image"

// Config holds the engine initialisation parameters.
type Config struct {
	ModelPath          string // Path to the ONNX model file.
	OnnxRuntimeLibPath string // Path to the onnxruntime shared library.

	// Inference parameters.
	ConfThreshold float32 // Confidence floor for raw candidates (default 0.25).
	IOUThreshold  float32 // NMS IOU threshold (default 0.5).

	// Model parameters.
	InputSize  int // Model input size (default 640).
	NumClasses int // Number of classes in the model head (default 80).

	// Optional runtime parameters.
	UseCuda    bool // Enable the CUDA execution provider.
	NumThreads int  // ONNX intra-op thread count. Zero leaves the default.
}

// DefaultConfig returns the configuration for a standard 640x640 COCO
// detection model.
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: DefaultLibraryPath(),
		ConfThreshold:      0.25,
		IOUThreshold:       0.50,
		InputSize:          640,
		NumClasses:         80,
	}
}

// Detection is a single raw detector output in pixel coordinates of the
// source image.
type Detection struct {
	// ClassID is the model's class index, e.g. for COCO models:
	//	0: person
	//	1: bicycle
	//	2: car
	ClassID int
	Score   float32
	Box     image.Rectangle
}

// imageParams holds the source image dimensions and the preprocessing scale.
type imageParams struct {
	origW, origH int
	scale        float32
}

// candidate is a raw box before non-maximum suppression.
type candidate struct {
	origBox image.Rectangle
	score   float32
	classID int
}

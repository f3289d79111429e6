package yolabel

// The detection adapter: maps raw detector output to normalized label
// records, filtered by a caller-supplied confidence threshold.

import (
	"fmt"
	"image"
	"log"

	"github.com/sensorable/yolabel/detect"
)

// Detector produces raw pixel-space detections for an image. The detect
// package provides the ONNX implementation; tests substitute their own.
type Detector interface {
	Predict(img image.Image) ([]detect.Detection, error)
}

// DetectImage runs the detector on img and converts the surviving candidates
// to normalized Records.
//
// Only candidates with a score >= threshold are kept, in the order the
// detector reported them. The threshold must be in [0, 1]; other values fail
// with ErrInvalidThreshold before the detector is invoked. A detector
// failure is reported as a DetectorUnavailableError.
func DetectImage(d Detector, img image.Image, threshold float64) ([]Record, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	detections, err := d.Predict(img)
	if err != nil {
		return nil, &DetectorUnavailableError{Err: err}
	}

	bounds := img.Bounds()
	records := make([]Record, 0, len(detections))
	for _, det := range detections {
		if float64(det.Score) < threshold {
			continue
		}
		r := RecordFromRect(det.ClassID, det.Box, bounds.Dx(), bounds.Dy())
		r.Confidence = float64(det.Score)
		if err := r.Validate(); err != nil {
			// A candidate clipped down to zero area is dropped, not saved.
			log.Printf("Dropping detection %v: %v", det.Box, err)
			continue
		}
		records = append(records, r)
	}

	return records, nil
}

// DetectFile loads the image at imagePath and runs DetectImage on it.
// Persistence of the returned label set is the caller's responsibility.
func DetectFile(d Detector, imagePath string, threshold float64) (File, error) {
	if threshold < 0 || threshold > 1 {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}

	img, _, err := loadImage(imagePath)
	if err != nil {
		return File{}, fmt.Errorf("cannot decode image %q: %v", imagePath, err)
	}

	records, err := DetectImage(d, img, threshold)
	if err != nil {
		if ue, ok := err.(*DetectorUnavailableError); ok {
			ue.Image = imagePath
		}
		return File{}, err
	}

	return File{Records: records, Image: imagePath}, nil
}

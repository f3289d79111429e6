package yolabel

// Auto-labeling: run a detector over a folder of images and write one YOLO
// label file per image. Images are processed sequentially, one at a time.

import (
	"fmt"
	"log"
	"os"
)

// AutoLabelOptions control the batch behaviour of AutoLabel.
type AutoLabelOptions struct {
	// AbortOnError stops the batch at the first failed image. The default is
	// to skip the image, record the failure and continue.
	AbortOnError bool

	// Progress, when non-nil, is called after each image with the number of
	// images handled so far (processed or skipped) and the total.
	Progress func(done, total int)
}

// ImageError records a per-image failure within a batch.
type ImageError struct {
	Image string
	Err   error
}

func (e ImageError) Error() string {
	return fmt.Sprintf("%q: %v", e.Image, e.Err)
}

// Report summarises an AutoLabel run. Skipped holds one entry per image that
// failed and was passed over, so callers can distinguish a clean run, a run
// with skips and an aborted run.
type Report struct {
	Total     int          // Images found in the input directory.
	Processed int          // Images whose label files were written.
	Skipped   []ImageError // Failed images that were passed over.
	Aborted   bool         // True when the run stopped at a failure.
}

// AutoLabel runs the detector over every image in imageDir and writes the
// detections above threshold as YOLO label files to labelDir, overwriting
// existing label files.
//
// A failure on one image does not block the remaining images unless
// opts.AbortOnError is set; the returned Report states what happened to
// every image either way.
func AutoLabel(d Detector, imageDir, labelDir string, threshold float64,
		opts AutoLabelOptions) (Report, error) {

	if threshold < 0 || threshold > 1 {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	if dirInfo, err := os.Stat(labelDir); err != nil || !dirInfo.IsDir() {
		return Report{}, fmt.Errorf("cannot access directory %q: %v", labelDir, err)
	}

	images, err := imageFilesInDir(imageDir)
	if err != nil {
		return Report{}, err
	}
	if len(images) == 0 {
		return Report{}, fmt.Errorf("no images found in %q", imageDir)
	}
	log.Printf("Auto-labeling %d images", len(images))

	report := Report{Total: len(images)}
	for i, imagePath := range images {
		err := func() error {
			fileData, err := DetectFile(d, imagePath, threshold)
			if err != nil {
				return err
			}
			return WriteLabelFile(LabelPathFor(labelDir, imagePath), fileData.Records)
		}()

		if err != nil {
			if opts.AbortOnError {
				report.Aborted = true
				return report, ImageError{Image: imagePath, Err: err}
			}
			log.Printf("Skipping %q: %v", imagePath, err)
			report.Skipped = append(report.Skipped, ImageError{Image: imagePath, Err: err})
		} else {
			report.Processed++
		}

		if opts.Progress != nil {
			opts.Progress(i+1, report.Total)
		}
	}

	return report, nil
}

package yolabel

// Dataset image export: resizing and per-object cropping.

import (
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropObjectsFromImage returns a crop of img for each record whose bounding
// box is at least partially contained in img. The crops may share their data
// with the original image.
//
// In addition it returns a File for each crop, with a single record covering
// the full crop area. The file paths are derived from f.Image, with a "_xx"
// suffix appended before the file extension, where xx is the index in
// f.Records.
func (f *File) cropObjectsFromImage(img image.Image) ([]image.Image, []File, error) {
	img2, ok := img.(subImager)
	if !ok {
		return nil, nil,
				fmt.Errorf("the image type of %q does not provide a SubImage method", f.Image)
	}

	crops := make([]image.Image, 0, len(f.Records))
	cropFiles := make([]File, 0, len(f.Records))
	bounds := img.Bounds()

	for i, rec := range f.Records {
		// Clip the bounding box to the image bounds.
		r := rec.Rect(bounds.Dx(), bounds.Dy()).Intersect(bounds)
		if r.Empty() {
			continue
		}

		// Construct the file path for the crop from the original path.
		ext := filepath.Ext(f.Image)
		path := fmt.Sprintf("%s_%02d%s", f.Image[0:len(f.Image)-len(ext)], i, ext)

		// The crop is annotated with a single record covering its entire
		// area.
		cropFiles = append(cropFiles, File{
			Records: []Record{{
				ClassID:    rec.ClassID,
				XCenter:    0.5,
				YCenter:    0.5,
				Width:      1,
				Height:     1,
				Confidence: rec.Confidence,
			}},
			Image: path,
		})
		crops = append(crops, img2.SubImage(r))
	}

	return crops, cropFiles, nil
}

// ProcessImages resizes all referenced images and writes them to imageOutDir
// using the specified encoding. The normalized records are unaffected by a
// resize; only the image paths change.
//
// If doCropObjects is true, individual objects as per the records are
// cropped from the images. The crops are resized instead of the original
// images in this case, and the data changes accordingly, with 0 or more
// cropped images replacing the original File.
func (data *Dataset) ProcessImages(imageOutDir string, longerSide, shorterSide int,
		downsamplingFilter, upsamplingFilter, encoding string, jpegQuality int,
		doCropObjects bool) error {

	doResizeImages := longerSide > 0 || shorterSide > 0
	if !doResizeImages && !doCropObjects {
		return nil
	}

	// Select the resampling algorithms.
	downsample := imaging.Box
	upsample := imaging.Linear
	filters := []struct {
		name   string
		filter *imaging.ResampleFilter
	}{
		{downsamplingFilter, &downsample},
		{upsamplingFilter, &upsample},
	}
	for _, v := range filters {
		switch v.name {
		case "nearest":
			*v.filter = imaging.NearestNeighbor
		case "box":
			*v.filter = imaging.Box
		case "linear":
			*v.filter = imaging.Linear
		case "gaussian":
			*v.filter = imaging.Gaussian
		case "lanczos":
			*v.filter = imaging.Lanczos
		default:
			return fmt.Errorf("unknown resampling filter %q", v.name)
		}
	}

	// Select the output file extension based on the requested encoding.
	var fileExt string
	switch encoding {
	case "jpg", "jpeg":
		fileExt = ".jpg"
	case "png":
		fileExt = ".png"
	default:
		return fmt.Errorf("unsupported output encoding %q", encoding)
	}

	// Prepare for concurrent processing. Limit the number of goroutines in
	// flight, as they load potentially large images into memory.
	numTasks := 2 * runtime.NumCPU()
	if len(*data) < numTasks {
		numTasks = len(*data)
	}
	workQueue := make(chan *File, 2*numTasks)

	var croppedData []File
	var croppedDataCh chan *File
	if doCropObjects {
		croppedData = make([]File, 0, len(*data))
		croppedDataCh = make(chan *File, 2*numTasks)
	}

	errors := make(chan error, 1)
	var wg sync.WaitGroup

	// Process images concurrently from a work queue.
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for d := range workQueue {
				processImage(d, imageOutDir, fileExt, longerSide, shorterSide, downsample,
					upsample, jpegQuality, doCropObjects, doResizeImages, croppedDataCh, errors)
			}
		}()
	}

	// Append image metadata for cropped images.
	var wgAppend sync.WaitGroup
	if doCropObjects {
		wgAppend.Add(1)
		go func() {
			defer wgAppend.Done()
			for d := range croppedDataCh {
				croppedData = append(croppedData, *d)
			}
		}()
	}

	// Feed the work queue.
	for i := range *data {
		workQueue <- &(*data)[i]
	}
	close(workQueue)

	// Wait for image processing to finish.
	wg.Wait()
	if doCropObjects {
		// Wait for all new metadata to be appended and then replace the old
		// data.
		close(croppedDataCh)
		wgAppend.Wait()
		*data = croppedData
	}

	close(errors)
	if len(errors) > 0 {
		return <-errors
	}

	return nil
}

// processImage processes the image described by data.
//
// If and only if doCropObjects is true, new metadata for the image crops is
// written to croppedData.
func processImage(data *File, imageOutDir, fileExt string, longerSide, shorterSide int,
		downsample, upsample imaging.ResampleFilter, jpegQuality int, doCropObjects,
		doResizeImage bool, croppedData chan<- *File, errors chan<- error) {

	trySendError := func(err error) {
		select {
		case errors <- err:
		default:
		}
	}

	// Read the image.
	img, _, err := loadImage(data.Image)
	if err != nil {
		trySendError(err)
		return
	}

	// Crop labelled objects from the image if requested.
	var images []image.Image
	var imageData []*File
	if doCropObjects {
		// The original image is not further processed in this case.
		var tmpData []File
		images, tmpData, err = data.cropObjectsFromImage(img)
		if err != nil {
			trySendError(err)
			return
		}

		imageData = make([]*File, len(tmpData))
		for i := range tmpData {
			imageData[i] = &tmpData[i]
		}
	} else {
		images = []image.Image{img}
		imageData = []*File{data}
	}

	// Process either the original image or the crops.
	for i, img := range images {
		data := imageData[i]

		// Resize. The records need no adjustment: normalized coordinates are
		// invariant under a uniform rescale.
		if doResizeImage {
			img, _, _, err = resizeImage(img, longerSide, shorterSide, downsample, upsample)
			if err != nil {
				trySendError(err)
				return
			}
		}

		// Save the image.
		inName := filepath.Base(data.Image)
		inFileExt := filepath.Ext(inName)
		outName := inName[0:len(inName)-len(inFileExt)] + fileExt
		outPath := filepath.Join(imageOutDir, outName)
		if err := saveImage(outPath, img, jpegQuality); err != nil {
			trySendError(err)
			return
		}
		data.Image = outPath

		// Return the metadata for the cropped image.
		if doCropObjects {
			croppedData <- data
		}
	}
}

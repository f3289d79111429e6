package yolabel

// The normalized annotation data model shared by all label formats.

import (
	"fmt"
	"image"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Record is a single object annotation: a class id plus a bounding box
// normalized against the image dimensions. XCenter, YCenter, Width and
// Height are fractions of the image width/height in [0, 1].
type Record struct {
	ClassID    int
	XCenter    float64
	YCenter    float64
	Width      float64
	Height     float64
	Confidence float64 // Optional detector score in [0, 1]. Zero when unknown.
}

// Validate checks the model invariants: a non-negative class id, all four
// geometry fields in [0, 1] and a strictly positive box area.
func (r Record) Validate() error {
	if r.ClassID < 0 {
		return fmt.Errorf("negative class id %d", r.ClassID)
	}
	coords := []struct {
		name  string
		value float64
	}{
		{"x_center", r.XCenter},
		{"y_center", r.YCenter},
		{"width", r.Width},
		{"height", r.Height},
	}
	for _, c := range coords {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 1 {
			return fmt.Errorf("%s %v outside [0, 1]", c.name, c.value)
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("degenerate box with area %v", r.Width*r.Height)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", r.Confidence)
	}
	return nil
}

// Rect maps the normalized box to pixel coordinates for an image with the
// given dimensions.
func (r Record) Rect(imgWidth, imgHeight int) image.Rectangle {
	w := float64(imgWidth)
	h := float64(imgHeight)
	x1 := (r.XCenter - r.Width/2) * w
	y1 := (r.YCenter - r.Height/2) * h
	x2 := (r.XCenter + r.Width/2) * w
	y2 := (r.YCenter + r.Height/2) * h
	return image.Rect(int(math.Round(x1)), int(math.Round(y1)),
		int(math.Round(x2)), int(math.Round(y2)))
}

// RecordFromRect builds a normalized Record from a pixel-space box. The box
// is clipped to the image bounds before normalization.
func RecordFromRect(classID int, box image.Rectangle, imgWidth, imgHeight int) Record {
	return recordFromBox(classID,
		float64(box.Min.X), float64(box.Min.Y), float64(box.Max.X), float64(box.Max.Y),
		imgWidth, imgHeight)
}

// recordFromBox converts absolute x1, y1, x2, y2 coordinates to a normalized
// Record, clipping the box to the image bounds first.
func recordFromBox(classID int, x1, y1, x2, y2 float64, imgWidth, imgHeight int) Record {
	w := float64(imgWidth)
	h := float64(imgHeight)
	x1 = math.Max(0, math.Min(x1, w))
	x2 = math.Max(0, math.Min(x2, w))
	y1 = math.Max(0, math.Min(y1, h))
	y2 = math.Max(0, math.Min(y2, h))

	return Record{
		ClassID: classID,
		XCenter: (x1 + x2) / 2 / w,
		YCenter: (y1 + y2) / 2 / h,
		Width:   (x2 - x1) / w,
		Height:  (y2 - y1) / h,
	}
}

// File holds the ordered label records for a single image. Records keeps the
// order in which the annotations were produced; that order is preserved by
// the codec and by all dataset operations.
type File struct {
	Records []Record
	Image   string // Path to the annotated image.
}

// Dataset is the annotation data for a list of images.
type Dataset []File

// MapClasses replaces class ids according to mappings.
//
// The format of mappings is old=new, with both sides parsed as non-negative
// integers.
func (data *Dataset) MapClasses(mappings []string) error {
	if len(mappings) == 0 {
		return nil
	}

	replacements := make(map[int]int, len(mappings))
	for _, v := range mappings {
		a := strings.Split(v, "=")
		if len(a) != 2 {
			return fmt.Errorf("invalid mapping: %v", v)
		}
		oldID, err1 := strconv.Atoi(a[0])
		newID, err2 := strconv.Atoi(a[1])
		if err1 != nil || err2 != nil || oldID < 0 || newID < 0 {
			return fmt.Errorf("invalid mapping: %v", v)
		}
		replacements[oldID] = newID
	}

	count := 0
	for _, f := range *data {
		for i := range f.Records {
			if newID, ok := replacements[f.Records[i].ClassID]; ok {
				f.Records[i].ClassID = newID
				count++
			}
		}
	}

	log.Printf("The class mappings changed %d records", count)
	return nil
}

// Filter filters out records whose class id is not in classIDs (an empty
// list keeps all classes), whose confidence is below minConfidence (records
// without a confidence value pass the filter), or whose normalized width or
// height is below minWidth/minHeight.
//
// If requireRecord is true, files left with no records are dropped as well.
// Record order within each file is preserved.
func (data *Dataset) Filter(classIDs []int, minConfidence, minWidth, minHeight float64,
		requireRecord bool) {

	keepClass := func(id int) bool {
		if len(classIDs) == 0 {
			return true
		}
		for _, v := range classIDs {
			if v == id {
				return true
			}
		}
		return false
	}

	numFiles := len(*data)
	numRecordsBefore := 0
	numRecordsAfter := 0

	kept := (*data)[:0]
	for _, f := range *data {
		numRecordsBefore += len(f.Records)

		records := f.Records[:0]
		for _, r := range f.Records {
			if r.Confidence > 0 && r.Confidence < minConfidence {
				continue
			}
			if r.Width < minWidth || r.Height < minHeight {
				continue
			}
			if !keepClass(r.ClassID) {
				continue
			}
			records = append(records, r)
		}
		f.Records = records
		numRecordsAfter += len(records)

		if requireRecord && len(records) == 0 {
			continue
		}
		kept = append(kept, f)
	}
	*data = kept

	log.Printf("Filtered out %d records and %d files",
		numRecordsBefore-numRecordsAfter, numFiles-len(*data))
}

// Split randomly splits the data into multiple datasets.
//
// The cumulativeSplits specify the cumulative distribution according to
// which the data is split into the returned datasets. Its values must add
// up to 100.
func (data *Dataset) Split(cumulativeSplits []int) ([]Dataset, error) {
	datasets := make([]Dataset, len(cumulativeSplits))

	// Allocate slightly more than the expected size for each dataset.
	var sum int
	for i, s := range cumulativeSplits {
		percent := s - sum
		datasets[i] = make(Dataset, 0, int(1.05*float64(percent)/100*float64(len(*data))))
		sum = s
	}
	if sum != 100 {
		return nil, fmt.Errorf("the split percentages do not add up to 100")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

outer:
	for _, d := range *data {
		r := rng.Intn(100)
		for i, s := range cumulativeSplits {
			if r < s {
				datasets[i] = append(datasets[i], d)
				continue outer
			}
		}
	}

	return datasets, nil
}

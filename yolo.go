package yolabel

// YOLO (darknet) label format functionality. One text file per image with
// the same base name: each line is
//
//	<class_id> <x_center> <y_center> <width> <height>
//
// with the four geometry values normalized to [0, 1].

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// yoloPrecision is the fixed number of decimal digits used when writing the
// normalized coordinates. Parsing and formatting share it, so formatting a
// parsed label set reproduces the input byte for byte.
const yoloPrecision = 6

// ParseLabels parses YOLO label lines from text, read from the file at path
// (path is only used in error diagnostics).
//
// The policy is skip-and-report: a line that does not parse as exactly five
// fields, whose numeric fields fall outside [0, 1], or that describes a
// zero-area box is reported as a MalformedLineError and skipped. The valid
// records are always returned. Blank lines are ignored.
func ParseLabels(path, text string) ([]Record, []*MalformedLineError) {
	lines := strings.Split(text, "\n")
	records := make([]Record, 0, len(lines))
	var problems []*MalformedLineError

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := parseLabelLine(line)
		if err != nil {
			problems = append(problems, &MalformedLineError{
				File: path,
				Line: i + 1,
				Text: line,
				Err:  err,
			})
			continue
		}
		records = append(records, r)
	}

	return records, problems
}

// parseLabelLine parses the values of a single record.
func parseLabelLine(line string) (Record, error) {
	tokens := strings.Fields(line)
	if len(tokens) != 5 {
		return Record{}, fmt.Errorf("expected 5 fields, got %d", len(tokens))
	}

	classID, err := strconv.Atoi(tokens[0])
	if err != nil {
		return Record{}, fmt.Errorf("invalid class id %q: %v", tokens[0], err)
	}

	var coords [4]float64
	for i := 0; i < 4; i++ {
		coords[i], err = strconv.ParseFloat(tokens[i+1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid coordinate %q: %v", tokens[i+1], err)
		}
	}

	r := Record{
		ClassID: classID,
		XCenter: coords[0],
		YCenter: coords[1],
		Width:   coords[2],
		Height:  coords[3],
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}

	return r, nil
}

// FormatLabels serializes records to YOLO label file text: one line per
// record in the stored order, fields separated by a single space, newline
// terminated, coordinates written with yoloPrecision decimal digits.
//
// Records that fail validation (degenerate boxes included) are not written.
// A box whose width or height rounds to zero at yoloPrecision is degenerate
// in its serialized form and is skipped as well. The number of skipped
// records is returned alongside the text.
func FormatLabels(records []Record) (text string, skipped int) {
	zero := strconv.FormatFloat(0, 'f', yoloPrecision, 64)

	var sb strings.Builder
	for _, r := range records {
		if err := r.Validate(); err != nil {
			skipped++
			continue
		}

		var fields [4]string
		for i, v := range [4]float64{r.XCenter, r.YCenter, r.Width, r.Height} {
			fields[i] = strconv.FormatFloat(v, 'f', yoloPrecision, 64)
		}
		if fields[2] == zero || fields[3] == zero {
			skipped++
			continue
		}

		sb.WriteString(strconv.Itoa(r.ClassID))
		for _, f := range fields {
			sb.WriteByte(' ')
			sb.WriteString(f)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), skipped
}

// ReadLabelFile reads and parses the YOLO label file at path.
//
// A missing file is an error; use os.IsNotExist to treat it as an empty
// label set where that is the desired semantic.
func ReadLabelFile(path string) ([]Record, []*MalformedLineError, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	records, problems := ParseLabels(path, string(enc))
	return records, problems, nil
}

// WriteLabelFile serializes records and writes them to path, overwriting any
// existing file. Invalid records are skipped and reported via the log.
func WriteLabelFile(path string, records []Record) error {
	text, skipped := FormatLabels(records)
	if skipped > 0 {
		log.Printf("Skipped %d invalid records while writing %q", skipped, path)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("cannot write label file %q: %v", path, err)
	}
	return nil
}

// LabelFilesInDir returns the sorted paths of all .txt label files in dirPath.
func LabelFilesInDir(dirPath string) ([]string, error) {
	return filesByExtInDir(dirPath, ".txt")
}

// LabelPathFor returns the label file path for imagePath inside labelDir:
// the image base name with the extension replaced by ".txt".
func LabelPathFor(labelDir, imagePath string) string {
	base := filepath.Base(imagePath)
	ext := filepath.Ext(base)
	return filepath.Join(labelDir, base[0:len(base)-len(ext)]+".txt")
}

// FromYOLO reads and parses YOLO labels from labelDir and matches them to
// the images in imageDir by base file name.
//
// Per-line problems and files without a matching image are logged and
// skipped; they do not abort the batch.
func FromYOLO(labelDir, imageDir string) (Dataset, error) {
	labelFiles, err := filesByExtInDir(labelDir, ".txt")
	if err != nil {
		return nil, err
	}
	log.Printf("Parsing YOLO labels for %d files", len(labelFiles))

	// Find the image files and create a map from base file name without ext
	// to ext.
	imageFiles, err := filesByExtInDir(imageDir, "")
	if err != nil {
		return nil, err
	}
	imageNamesToExt := mapFileNamesToExtensions(imageFiles)

	data := make(Dataset, 0, len(labelFiles))
	for _, path := range labelFiles {
		records, problems, err := ReadLabelFile(path)
		if err != nil {
			log.Printf("Error while parsing, skipping %q: %v", path, err)
			continue
		}
		for _, p := range problems {
			log.Print("Skipping line: ", p)
		}

		// Find the corresponding image.
		_, baseNoExt, _, err := splitPath(path)
		if err != nil {
			log.Print(err)
			continue
		}
		imageExt, found := imageNamesToExt[baseNoExt]
		if !found {
			log.Print("Could not find the corresponding image file, skipping ", path)
			continue
		}
		imagePath := filepath.Join(imageDir, baseNoExt+"."+imageExt)

		data = append(data, File{Records: records, Image: imagePath})
	}

	return data, nil
}

// WriteYOLO writes data to dirPath, one label file per image.
func WriteYOLO(dirPath string, data Dataset) error {
	dirInfo, err := os.Stat(dirPath)
	if err != nil || !dirInfo.IsDir() {
		return fmt.Errorf("cannot access directory %q: %v", dirPath, err)
	}

	for _, fileData := range data {
		if err := WriteLabelFile(LabelPathFor(dirPath, fileData.Image), fileData.Records); err != nil {
			return err
		}
	}

	return nil
}

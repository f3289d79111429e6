package yolabel

// KITTI specific functionality. KITTI stores absolute pixel coordinates and
// string labels, so conversions require the image dimensions and a class
// name table.

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// KITTIAnnotation is a single annotation within a KITTI file.
type KITTIAnnotation struct {
	Coords [4]float64 // x1, y1, x2, y2
	Label  string
	Score  float64 // Optional, linear confidence value.
}

// FromKITTI reads and parses KITTI annotations from labelDir, matches them
// to the images in imageDir and converts them to normalized records. Labels
// are mapped to class ids through names, with unknown names assigned the
// next free id.
func FromKITTI(labelDir, imageDir string, names *ClassNames) (Dataset, error) {
	labelFiles, err := filesByExtInDir(labelDir, ".txt")
	if err != nil {
		return nil, err
	}
	log.Printf("Parsing KITTI labels for %d files", len(labelFiles))

	// Find the image files and create a map from base file name without ext
	// to ext.
	imageFiles, err := filesByExtInDir(imageDir, "")
	if err != nil {
		return nil, err
	}
	imageNamesToExt := mapFileNamesToExtensions(imageFiles)

	data := make(Dataset, 0, len(labelFiles))
	for _, path := range labelFiles {
		lines, err := readLines(path)
		if err != nil {
			log.Printf("Error while parsing, skipping %q: %v", path, err)
			continue
		}

		// Find the corresponding image; its dimensions are needed for
		// normalization.
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
		imagePath := imageDir + string(os.PathSeparator) + baseNoExt + "." + imageExt
		img, _, err := decodeImageConfig(imagePath)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v", imagePath, err)
			continue
		}

		records := make([]Record, 0, len(lines))
		for i := 0; i < len(lines); i++ {
			a, err := parseKITTIAnnotation(lines[i])
			if err != nil {
				log.Printf("Error while parsing, skipping %q: %v", path, err)
				continue
			}

			r := recordFromBox(names.Assign(a.Label),
				a.Coords[0], a.Coords[1], a.Coords[2], a.Coords[3], img.Width, img.Height)
			r.Confidence = a.Score
			if err := r.Validate(); err != nil {
				log.Printf("Skipping degenerate annotation in %q: %v", path, err)
				continue
			}
			records = append(records, r)
		}

		data = append(data, File{Records: records, Image: imagePath})
	}

	return data, nil
}

// parseKITTIAnnotation parses the line of values for a single annotation.
func parseKITTIAnnotation(line string) (KITTIAnnotation, error) {
	a := KITTIAnnotation{}

	tokens := strings.Split(line, " ")
	if len(tokens) < 8 {
		return a, fmt.Errorf("insufficient tokens in %q", line)
	}

	a.Label = tokens[0]
	var err error
	for i := 4; i < 8 && err == nil; i++ {
		a.Coords[i-4], err = strconv.ParseFloat(tokens[i], 64)
	}
	if err != nil {
		return a, fmt.Errorf("unexpected values in %q: %v", line, err)
	}

	// Parse the optional confidence score.
	if len(tokens) >= 16 {
		a.Score, err = strconv.ParseFloat(tokens[15], 64)
	}
	if err != nil {
		return a, fmt.Errorf("unexpected score format in %q: %v", line, err)
	}

	return a, nil
}

// WriteKITTI writes data to dirPath in KITTI format, one file per image.
// Class ids are written as names looked up through names.
func WriteKITTI(dirPath string, data Dataset, names *ClassNames) error {
	dirInfo, err := os.Stat(dirPath)
	if err != nil || !dirInfo.IsDir() {
		return fmt.Errorf("cannot access directory %q: %v", dirPath, err)
	}

	labelDirWithSep := dirPath + string(os.PathSeparator)
	for _, fileData := range data {
		// The image dimensions are needed to denormalize the coordinates.
		img, _, err := decodeImageConfig(fileData.Image)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v", fileData.Image, err)
			continue
		}

		// Use the image file name with .txt extension as label file name.
		_, baseNoExt, _, err := splitPath(fileData.Image)
		if err != nil {
			return err
		}
		filePath := labelDirWithSep + baseNoExt + ".txt"
		file, err := os.Create(filePath)
		if err != nil {
			return err
		}

		// Write annotations to file.
		for _, r := range fileData.Records {
			box := r.Rect(img.Width, img.Height)
			_, err = fmt.Fprintf(file,
				"%s 0.0 0 0.0 %.2f %.2f %.2f %.2f 0.0 0.0 0.0 0.0 0.0 0.0 0.0 %f\n",
				names.Name(r.ClassID), float64(box.Min.X), float64(box.Min.Y),
				float64(box.Max.X), float64(box.Max.Y), r.Confidence)
			if err != nil {
				return err
			}
		}

		if err := file.Close(); err != nil {
			return err
		}
	}

	return nil
}

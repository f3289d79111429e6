package yolabel

// Sloth specific functionality. Sloth project files store absolute pixel
// coordinates and string labels; image dimensions are read from the
// referenced image files during conversion.

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// SlothAnnotation is a single annotation within a Sloth file.
type SlothAnnotation struct {
	Class  string  `json:"class,omitempty"`
	Type   string  `json:"type,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// SlothAnnotatedFile defines the Sloth annotation structure for a single
// file.
type SlothAnnotatedFile struct {
	Annotations []SlothAnnotation `json:"annotations"`
	Class       string            `json:"class,omitempty"`
	FilePath    string            `json:"filename,omitempty"`
}

// FromSloth reads and parses Sloth annotations from the file at path and
// converts them to normalized records. Files whose image cannot be read are
// logged and skipped.
func FromSloth(path string, names *ClassNames) (Dataset, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var slothData []SlothAnnotatedFile
	err = json.Unmarshal(enc, &slothData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Sloth input from %q: %v", path, err)
	}

	// Convert to normalized records.
	data := make(Dataset, 0, len(slothData))
	for _, slothFileData := range slothData {
		img, _, err := decodeImageConfig(slothFileData.FilePath)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v",
				slothFileData.FilePath, err)
			continue
		}

		fileData := File{
			Records: make([]Record, 0, len(slothFileData.Annotations)),
			Image:   slothFileData.FilePath,
		}
		for _, a := range slothFileData.Annotations {
			r := recordFromBox(names.Assign(a.Class),
				a.X, a.Y, a.X+a.Width, a.Y+a.Height, img.Width, img.Height)
			if err := r.Validate(); err != nil {
				log.Printf("Skipping degenerate annotation in %q: %v",
					slothFileData.FilePath, err)
				continue
			}
			fileData.Records = append(fileData.Records, r)
		}
		data = append(data, fileData)
	}

	return data, nil
}

// ToSloth converts normalized records to Sloth format. Files whose image
// cannot be read are logged and skipped.
func ToSloth(data Dataset, names *ClassNames) []SlothAnnotatedFile {
	slothData := make([]SlothAnnotatedFile, 0, len(data))
	for _, fileData := range data {
		img, _, err := decodeImageConfig(fileData.Image)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v", fileData.Image, err)
			continue
		}

		slothFileData := SlothAnnotatedFile{
			Annotations: make([]SlothAnnotation, len(fileData.Records)),
			Class:       "image",
			FilePath:    fileData.Image,
		}
		for i, r := range fileData.Records {
			box := r.Rect(img.Width, img.Height)
			slothFileData.Annotations[i] = SlothAnnotation{
				Class:  names.Name(r.ClassID),
				Type:   "rect",
				X:      float64(box.Min.X),
				Y:      float64(box.Min.Y),
				Width:  float64(box.Dx()),
				Height: float64(box.Dy()),
			}
		}
		slothData = append(slothData, slothFileData)
	}

	return slothData
}

// WriteSloth writes the Sloth annotations to outFile.
func WriteSloth(outFile string, data []SlothAnnotatedFile) error {
	enc, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outFile, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", outFile, err)
	}
	return nil
}

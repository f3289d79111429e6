package yolabel

// VGG Image Annotator (VIA) specific functionality. VIA project files store
// rect shapes in absolute pixel coordinates keyed by image file name; the
// images are resolved against an image directory during conversion.

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// VIAShape describes the shape of an annotation.
type VIAShape struct {
	Name   string `json:"name"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
}

// VIARegionAnnotation is a single region annotation for a particular image
// in a VIA file.
type VIARegionAnnotation struct {
	Attributes map[string]string `json:"region_attributes"`
	Shape      VIAShape          `json:"shape_attributes"`
}

// VIAAnnotatedFile defines the VIA annotation structure for a single file.
type VIAAnnotatedFile struct {
	Annotations []VIARegionAnnotation `json:"regions"`
	Attributes  map[string]string     `json:"file_attributes"`
	FilePath    string                `json:"filename"`
	Size        int64                 `json:"size"`
}

// VIAOptionsAttribute defines attributes of type "radio" or "dropdown".
type VIAOptionsAttribute struct {
	Type           string            `json:"type"` // "radio" or "dropdown"
	Description    string            `json:"description"`
	Options        map[string]string `json:"options"`
	DefaultOptions map[string]bool   `json:"default_options"`
}

// VIATextAttribute defines attributes of type "text".
type VIATextAttribute struct {
	Type         string `json:"type"` // "text"
	Description  string `json:"description"`
	DefaultValue string `json:"default_value"`
}

// VIAAttributes defines the VIA attribute metadata.
type VIAAttributes struct {
	Region map[string]interface{} `json:"region"`
	File   map[string]interface{} `json:"file"`
}

// VIAProject defines the VIA project structure.
type VIAProject struct {
	Attributes    VIAAttributes               `json:"_via_attributes"`
	ImageMetadata map[string]VIAAnnotatedFile `json:"_via_img_metadata"`
	// Must exist for VIA to load the project. Default values will be used.
	Settings struct{} `json:"_via_settings"`
}

const (
	viaLabelAttribute      = "Label"      // The attribute key used for labels.
	viaConfidenceAttribute = "Confidence" // The attribute key for detector scores.
)

// FromVIA reads and parses VIA annotations from the file at path, resolving
// the referenced images against imageDir, and converts them to normalized
// records.
func FromVIA(path, imageDir string, names *ClassNames) (Dataset, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var viaData VIAProject
	err = json.Unmarshal(enc, &viaData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse VIA input from %q: %v", path, err)
	}

	data := make(Dataset, 0, len(viaData.ImageMetadata))
	for _, viaFile := range viaData.ImageMetadata {
		imagePath := viaFile.FilePath
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(imageDir, imagePath)
		}
		img, _, err := decodeImageConfig(imagePath)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v", imagePath, err)
			continue
		}

		fileData := File{
			Records: make([]Record, 0, len(viaFile.Annotations)),
			Image:   imagePath,
		}
		for _, a := range viaFile.Annotations {
			r := recordFromBox(names.Assign(a.Attributes[viaLabelAttribute]),
				float64(a.Shape.X), float64(a.Shape.Y),
				float64(a.Shape.X+a.Shape.Width), float64(a.Shape.Y+a.Shape.Height),
				img.Width, img.Height)

			if v, ok := a.Attributes[viaConfidenceAttribute]; ok {
				if c, err := strconv.ParseFloat(v, 64); err == nil {
					r.Confidence = c
				} else {
					log.Printf("Failed to parse attribute %q as float: %v",
						viaConfidenceAttribute, err)
				}
			}

			if err := r.Validate(); err != nil {
				log.Printf("Skipping degenerate annotation in %q: %v", viaFile.FilePath, err)
				continue
			}
			fileData.Records = append(fileData.Records, r)
		}
		data = append(data, fileData)
	}

	return data, nil
}

// ToVIA converts normalized records to VIA format. Files whose image cannot
// be read are logged and skipped.
func ToVIA(data Dataset, names *ClassNames) VIAProject {
	viaData := VIAProject{
		Attributes: VIAAttributes{
			Region: make(map[string]interface{}),
			File:   make(map[string]interface{}),
		},
		ImageMetadata: make(map[string]VIAAnnotatedFile, len(data)),
	}

	// Adds a label option to the region attribute metadata, creating the
	// attribute if necessary.
	addLabelOption := func(option string) {
		var attr VIAOptionsAttribute
		if a, ok := viaData.Attributes.Region[viaLabelAttribute]; ok {
			attr = a.(VIAOptionsAttribute)
		} else {
			attr = VIAOptionsAttribute{
				Type:           "radio",
				Options:        make(map[string]string),
				DefaultOptions: make(map[string]bool, 0),
			}
		}
		attr.Options[option] = ""
		viaData.Attributes.Region[viaLabelAttribute] = attr
	}

	var haveConfidenceAttr bool
	for _, fileData := range data {
		img, _, err := decodeImageConfig(fileData.Image)
		if err != nil {
			log.Printf("Cannot decode image metadata, skipping %q: %v", fileData.Image, err)
			continue
		}

		viaFile := VIAAnnotatedFile{
			Annotations: make([]VIARegionAnnotation, 0, len(fileData.Records)),
			Attributes:  make(map[string]string, 0), // Must not be nil as that becomes JSON null.
			FilePath:    filepath.Base(fileData.Image),
		}
		for _, r := range fileData.Records {
			label := names.Name(r.ClassID)
			box := r.Rect(img.Width, img.Height)
			viaObject := VIARegionAnnotation{
				Attributes: map[string]string{viaLabelAttribute: label},
				Shape: VIAShape{
					Name:   "rect",
					X:      int32(box.Min.X),
					Y:      int32(box.Min.Y),
					Width:  int32(box.Dx()),
					Height: int32(box.Dy()),
				},
			}
			if r.Confidence > 0 {
				viaObject.Attributes[viaConfidenceAttribute] =
						strconv.FormatFloat(r.Confidence, 'f', -1, 64)
				if !haveConfidenceAttr {
					haveConfidenceAttr = true
					viaData.Attributes.Region[viaConfidenceAttribute] = VIATextAttribute{Type: "text"}
				}
			}

			// Add the label value to the attribute metadata.
			addLabelOption(label)

			viaFile.Annotations = append(viaFile.Annotations, viaObject)
		}
		viaData.ImageMetadata[viaFile.FilePath] = viaFile
	}

	return viaData
}

// WriteVIA writes the VIA project data to outFile.
func WriteVIA(outFile string, data VIAProject) error {
	enc, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outFile, enc, 0644); err != nil {
		return fmt.Errorf("cannot write file %q: %v", outFile, err)
	}
	return nil
}

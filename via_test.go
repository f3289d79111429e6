package yolabel

import (
	"path/filepath"
	"testing"
)

func TestVIARoundTrip(t *testing.T) {
	imageDir := t.TempDir()
	outFile := filepath.Join(t.TempDir(), "project.json")
	writeTestPNG(t, imageDir, "scene.png", 200, 100)

	original := Dataset{{
		Image: filepath.Join(imageDir, "scene.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.3, Confidence: 0.75},
			{ClassID: 1, XCenter: 0.25, YCenter: 0.25, Width: 0.1, Height: 0.1},
		},
	}}

	names := NewClassNames([]string{"car", "person"})
	if err := WriteVIA(outFile, ToVIA(original, names)); err != nil {
		t.Fatalf("WriteVIA failed: %v", err)
	}

	back, err := FromVIA(outFile, imageDir, names)
	if err != nil {
		t.Fatalf("FromVIA failed: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("expected 1 file, got %d", len(back))
	}
	if back[0].Image != original[0].Image {
		t.Errorf("expected image %q, got %q", original[0].Image, back[0].Image)
	}
	if len(back[0].Records) != len(original[0].Records) {
		t.Fatalf("expected %d records, got %d",
			len(original[0].Records), len(back[0].Records))
	}
	for i, r := range back[0].Records {
		if r != original[0].Records[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, original[0].Records[i], r)
		}
	}
}

func TestToVIAAttributes(t *testing.T) {
	imageDir := t.TempDir()
	writeTestPNG(t, imageDir, "scene.png", 100, 100)

	data := Dataset{{
		Image: filepath.Join(imageDir, "scene.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5, Confidence: 0.9},
			{ClassID: 1, XCenter: 0.25, YCenter: 0.25, Width: 0.2, Height: 0.2},
		},
	}}
	project := ToVIA(data, NewClassNames([]string{"car", "person"}))

	viaFile, ok := project.ImageMetadata["scene.png"]
	if !ok {
		t.Fatalf("expected the metadata keyed by the image base name, got %v",
			project.ImageMetadata)
	}
	if len(viaFile.Annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(viaFile.Annotations))
	}

	first := viaFile.Annotations[0]
	if first.Shape.Name != "rect" {
		t.Errorf("expected a rect shape, got %q", first.Shape.Name)
	}
	if first.Attributes[viaLabelAttribute] != "car" {
		t.Errorf("expected the car label, got %q", first.Attributes[viaLabelAttribute])
	}
	if _, ok := first.Attributes[viaConfidenceAttribute]; !ok {
		t.Error("expected a confidence attribute on the detected annotation")
	}
	if _, ok := viaFile.Annotations[1].Attributes[viaConfidenceAttribute]; ok {
		t.Error("expected no confidence attribute on the manual annotation")
	}

	// Both labels appear as options of the label attribute.
	attr, ok := project.Attributes.Region[viaLabelAttribute].(VIAOptionsAttribute)
	if !ok {
		t.Fatalf("expected a label options attribute, got %v", project.Attributes.Region)
	}
	for _, label := range []string{"car", "person"} {
		if _, ok := attr.Options[label]; !ok {
			t.Errorf("expected label option %q in %v", label, attr.Options)
		}
	}
}

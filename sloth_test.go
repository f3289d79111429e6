package yolabel

import (
	"path/filepath"
	"testing"
)

func TestSlothRoundTrip(t *testing.T) {
	imageDir := t.TempDir()
	outFile := filepath.Join(t.TempDir(), "annotations.json")
	writeTestPNG(t, imageDir, "scene.png", 200, 100)

	original := Dataset{{
		Image: filepath.Join(imageDir, "scene.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.3},
			{ClassID: 1, XCenter: 0.25, YCenter: 0.25, Width: 0.1, Height: 0.1},
		},
	}}

	names := NewClassNames([]string{"car", "person"})
	if err := WriteSloth(outFile, ToSloth(original, names)); err != nil {
		t.Fatalf("WriteSloth failed: %v", err)
	}

	back, err := FromSloth(outFile, names)
	if err != nil {
		t.Fatalf("FromSloth failed: %v", err)
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

func TestToSlothAnnotationShape(t *testing.T) {
	imageDir := t.TempDir()
	writeTestPNG(t, imageDir, "scene.png", 100, 100)

	data := Dataset{{
		Image: filepath.Join(imageDir, "scene.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5},
		},
	}}
	slothData := ToSloth(data, NewClassNames([]string{"car"}))
	if len(slothData) != 1 || len(slothData[0].Annotations) != 1 {
		t.Fatalf("unexpected sloth data: %+v", slothData)
	}

	a := slothData[0].Annotations[0]
	if a.Class != "car" || a.Type != "rect" {
		t.Errorf("unexpected annotation metadata: %+v", a)
	}
	if a.X != 25 || a.Y != 25 || a.Width != 50 || a.Height != 50 {
		t.Errorf("unexpected annotation geometry: %+v", a)
	}
}

func TestFromSlothSkipsMissingImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	if err := WriteSloth(path, []SlothAnnotatedFile{
		{FilePath: "/nonexistent/scene.png", Class: "image"},
	}); err != nil {
		t.Fatal(err)
	}

	data, err := FromSloth(path, NewClassNames(nil))
	if err != nil {
		t.Fatalf("FromSloth failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected the file with a missing image to be skipped, got %+v", data)
	}
}

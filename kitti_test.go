package yolabel

import (
	"path/filepath"
	"testing"
)

func TestParseKITTIAnnotation(t *testing.T) {
	line := "car 0.0 0 0.0 100.00 50.00 300.00 250.00 0.0 0.0 0.0 0.0 0.0 0.0 0.0 0.87"
	a, err := parseKITTIAnnotation(line)
	if err != nil {
		t.Fatalf("parseKITTIAnnotation failed: %v", err)
	}
	if a.Label != "car" {
		t.Errorf("expected label car, got %q", a.Label)
	}
	if a.Coords != [4]float64{100, 50, 300, 250} {
		t.Errorf("unexpected coords: %v", a.Coords)
	}
	if a.Score != 0.87 {
		t.Errorf("expected score 0.87, got %v", a.Score)
	}

	// The short form without the trailing fields carries no score.
	a, err = parseKITTIAnnotation("person 0.0 0 0.0 10.00 10.00 20.00 20.00")
	if err != nil {
		t.Fatalf("parseKITTIAnnotation failed: %v", err)
	}
	if a.Label != "person" || a.Score != 0 {
		t.Errorf("unexpected annotation: %+v", a)
	}

	if _, err := parseKITTIAnnotation("car 0.0 0 0.0"); err == nil {
		t.Error("expected an error for a truncated line")
	}
	if _, err := parseKITTIAnnotation("car 0.0 0 0.0 a b c d"); err == nil {
		t.Error("expected an error for non-numeric coordinates")
	}
}

func TestKITTIRoundTrip(t *testing.T) {
	imageDir := t.TempDir()
	labelDir := t.TempDir()
	writeTestPNG(t, imageDir, "frame.png", 200, 100)

	// Values chosen to denormalize to whole pixels.
	original := Dataset{{
		Image: filepath.Join(imageDir, "frame.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.3},
			{ClassID: 1, XCenter: 0.25, YCenter: 0.25, Width: 0.1, Height: 0.1},
		},
	}}

	names := NewClassNames([]string{"car", "person"})
	if err := WriteKITTI(labelDir, original, names); err != nil {
		t.Fatalf("WriteKITTI failed: %v", err)
	}

	back, err := FromKITTI(labelDir, imageDir, names)
	if err != nil {
		t.Fatalf("FromKITTI failed: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("expected 1 file, got %d", len(back))
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
	if names.Len() != 2 {
		t.Errorf("expected no new class assignments, got %d classes", names.Len())
	}
}

func TestFromKITTIAssignsUnknownLabels(t *testing.T) {
	imageDir := t.TempDir()
	labelDir := t.TempDir()
	writeTestPNG(t, imageDir, "a.png", 100, 100)
	if err := WriteKITTI(labelDir, Dataset{{
		Image: filepath.Join(imageDir, "a.png"),
		Records: []Record{
			{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.5, Height: 0.5},
		},
	}}, NewClassNames([]string{"bicycle"})); err != nil {
		t.Fatal(err)
	}

	names := NewClassNames([]string{"car"})
	data, err := FromKITTI(labelDir, imageDir, names)
	if err != nil {
		t.Fatalf("FromKITTI failed: %v", err)
	}
	if len(data) != 1 || len(data[0].Records) != 1 {
		t.Fatalf("unexpected dataset: %+v", data)
	}

	// "bicycle" was not in the table and gets the next free id.
	if data[0].Records[0].ClassID != 1 {
		t.Errorf("expected class id 1, got %d", data[0].Records[0].ClassID)
	}
	if id, ok := names.ID("bicycle"); !ok || id != 1 {
		t.Errorf("expected bicycle to be assigned id 1, got (%d, %v)", id, ok)
	}
}

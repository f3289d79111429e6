package yolabel

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLabels(t *testing.T) {
	text := "2 0.5 0.5 0.2 0.3\n0 0.25 0.75 0.1 0.1\n"
	records, problems := ParseLabels("labels.txt", text)
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	want := Record{ClassID: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.3}
	if records[0] != want {
		t.Errorf("expected %+v, got %+v", want, records[0])
	}
}

func TestParseLabelsSkipsBlankLines(t *testing.T) {
	text := "\n1 0.5 0.5 0.2 0.2\n\n\n2 0.1 0.1 0.05 0.05\n\n"
	records, problems := ParseLabels("labels.txt", text)
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestParseLabelsSkipsAndReportsMalformedLines(t *testing.T) {
	text := strings.Join([]string{
		"0 0.5 0.5 0.2 0.2",   // valid
		"1 0.5 0.5",           // wrong token count
		"x 0.5 0.5 0.2 0.2",   // non-integer class
		"0 1.5 0.5 0.2 0.2",   // x out of range
		"0 0.5 0.5 0.0 0.2",   // zero width
		"-1 0.5 0.5 0.2 0.2",  // negative class
		"2 0.25 0.25 0.1 0.1", // valid
	}, "\n")

	records, problems := ParseLabels("labels.txt", text)
	if len(records) != 2 {
		t.Errorf("expected 2 valid records, got %d", len(records))
	}
	if len(problems) != 5 {
		t.Fatalf("expected 5 problems, got %d", len(problems))
	}

	// Line numbers are 1-based and count blank lines.
	wantLines := []int{2, 3, 4, 5, 6}
	for i, p := range problems {
		if p.Line != wantLines[i] {
			t.Errorf("problem %d: expected line %d, got %d", i, wantLines[i], p.Line)
		}
		if p.File != "labels.txt" {
			t.Errorf("problem %d: expected file labels.txt, got %q", i, p.File)
		}
	}
}

func TestFormatLabelsPrecision(t *testing.T) {
	records := []Record{{ClassID: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.3}}
	text, skipped := FormatLabels(records)
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}

	want := "2 0.500000 0.500000 0.200000 0.300000\n"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
}

func TestFormatLabelsSkipsInvalidRecords(t *testing.T) {
	records := []Record{
		{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.2},
		{ClassID: -1, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.2},
		{ClassID: 1, XCenter: 2.0, YCenter: 0.5, Width: 0.2, Height: 0.2},
	}
	text, skipped := FormatLabels(records)
	if skipped != 2 {
		t.Errorf("expected 2 skipped records, got %d", skipped)
	}
	if lines := strings.Count(text, "\n"); lines != 1 {
		t.Errorf("expected 1 output line, got %d", lines)
	}
}

func TestFormatLabelsSkipsBoxesRoundingToZero(t *testing.T) {
	records := []Record{
		// Valid, but the dimensions round to 0.000000 at the output precision.
		{ClassID: 0, XCenter: 0.5, YCenter: 0.5, Width: 4e-7, Height: 4e-7},
		{ClassID: 1, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 4e-7},
		{ClassID: 2, XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.2},
	}
	text, skipped := FormatLabels(records)
	if skipped != 2 {
		t.Errorf("expected 2 skipped records, got %d", skipped)
	}
	if strings.Contains(text, "0.000000") {
		t.Errorf("expected no zero-sized boxes in the output, got %q", text)
	}

	// The output parses back without losing anything silently.
	parsed, problems := ParseLabels("tiny.txt", text)
	if len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
	if len(parsed) != 1 || parsed[0].ClassID != 2 {
		t.Errorf("expected only the representable record, got %+v", parsed)
	}
}

func TestLabelRoundTrip(t *testing.T) {
	original := []Record{
		{ClassID: 0, XCenter: 0.123456, YCenter: 0.654321, Width: 0.111111, Height: 0.222222},
		{ClassID: 7, XCenter: 0.5, YCenter: 0.5, Width: 1, Height: 1},
		{ClassID: 3, XCenter: 0.000001, YCenter: 0.999999, Width: 0.000002, Height: 0.000002},
	}

	text, skipped := FormatLabels(original)
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}
	parsed, problems := ParseLabels("roundtrip.txt", text)
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
	if len(parsed) != len(original) {
		t.Fatalf("expected %d records, got %d", len(original), len(parsed))
	}
	for i := range original {
		if parsed[i] != original[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, original[i], parsed[i])
		}
	}

	// A second pass must be byte-identical.
	text2, _ := FormatLabels(parsed)
	if text2 != text {
		t.Errorf("round-trip is not stable: %q != %q", text2, text)
	}
}

func TestMalformedLineErrorFormat(t *testing.T) {
	_, problems := ParseLabels("a/b.txt", "0 0.5 0.5")
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(problems))
	}

	msg := problems[0].Error()
	if !strings.HasPrefix(msg, "a/b.txt:1:") {
		t.Errorf("expected file:line prefix, got %q", msg)
	}
	if !strings.Contains(msg, `"0 0.5 0.5"`) {
		t.Errorf("expected the offending line in the message, got %q", msg)
	}

	var mle *MalformedLineError
	if !errors.As(error(problems[0]), &mle) {
		t.Error("expected errors.As to match *MalformedLineError")
	}
}

func TestLabelPathFor(t *testing.T) {
	got := LabelPathFor("labels", filepath.Join("images", "img_001.jpg"))
	want := filepath.Join("labels", "img_001.txt")
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReadWriteLabelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.txt")

	records := []Record{
		{ClassID: 1, XCenter: 0.4, YCenter: 0.6, Width: 0.25, Height: 0.3, Confidence: 0.9},
	}
	if err := WriteLabelFile(path, records); err != nil {
		t.Fatalf("WriteLabelFile failed: %v", err)
	}

	read, problems, err := ReadLabelFile(path)
	if err != nil {
		t.Fatalf("ReadLabelFile failed: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
	if len(read) != 1 {
		t.Fatalf("expected 1 record, got %d", len(read))
	}

	// Confidence is not part of the serialized form.
	want := records[0]
	want.Confidence = 0
	if read[0] != want {
		t.Errorf("expected %+v, got %+v", want, read[0])
	}
}

func TestReadLabelFileMissing(t *testing.T) {
	_, _, err := ReadLabelFile(filepath.Join(t.TempDir(), "missing.txt"))
	if !os.IsNotExist(err) {
		t.Errorf("expected os.IsNotExist error, got %v", err)
	}
}

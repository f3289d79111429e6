package yolabel

import (
	"errors"
	"fmt"
)

// ErrInvalidThreshold is returned when a caller supplies a confidence
// threshold outside [0, 1]. The operation is not attempted.
var ErrInvalidThreshold = errors.New("confidence threshold must be in [0, 1]")

// MalformedLineError describes a label file line that was rejected during
// parsing. The line is skipped and parsing continues with the remaining
// lines, so one bad line does not prevent loading the valid ones.
type MalformedLineError struct {
	File string // The label file path.
	Line int    // The 1-based line number within the file.
	Text string // The offending line.
	Err  error  // The reason the line was rejected.
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("%s:%d: malformed label line %q: %v", e.File, e.Line, e.Text, e.Err)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

// DetectorUnavailableError wraps a failure to load or invoke the external
// detector. The caller decides whether to skip the affected image or to
// abort the batch.
type DetectorUnavailableError struct {
	Image string // The image being processed. May be empty.
	Err   error
}

func (e *DetectorUnavailableError) Error() string {
	if e.Image == "" {
		return fmt.Sprintf("detector unavailable: %v", e.Err)
	}
	return fmt.Sprintf("detector unavailable for %q: %v", e.Image, e.Err)
}

func (e *DetectorUnavailableError) Unwrap() error { return e.Err }

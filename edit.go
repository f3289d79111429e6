package yolabel

// In-memory editing state behind the annotation editor. The GUI layer is an
// external collaborator; these types hold the label set for the image that
// is currently open and the navigation state across an image folder.

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Session owns the in-memory label set for one open image. Mutations are
// validated before they are applied; an invalid record is rejected and the
// session state is left untouched, so a committed label set always satisfies
// the model invariants when it reaches the codec.
type Session struct {
	records []Record
	dirty   bool
}

// NewSession creates a session seeded with records. The slice is copied.
func NewSession(records []Record) *Session {
	return &Session{records: append([]Record(nil), records...)}
}

// Len is the number of records in the session.
func (s *Session) Len() int { return len(s.records) }

// Dirty reports whether the session has unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }

// List returns a copy of the session's label set in stored order.
func (s *Session) List() []Record {
	return append([]Record(nil), s.records...)
}

// Add appends a record to the label set.
func (s *Session) Add(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.records = append(s.records, r)
	s.dirty = true
	return nil
}

// Update replaces the record at index i.
func (s *Session) Update(i int, r Record) error {
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("record index %d out of range [0, %d)", i, len(s.records))
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.records[i] = r
	s.dirty = true
	return nil
}

// Remove deletes the record at index i, preserving the order of the rest.
func (s *Session) Remove(i int) error {
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("record index %d out of range [0, %d)", i, len(s.records))
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.dirty = true
	return nil
}

// Workspace pairs an image directory with a label directory and tracks which
// image is open. Edits are kept in per-image sessions until they are saved
// through the codec.
type Workspace struct {
	labelDir string
	images   []string // Sorted image paths.
	current  int
	sessions map[string]*Session
}

// OpenWorkspace scans imageDir for images and prepares editing against the
// label files in labelDir. The first image (in name order) becomes current.
func OpenWorkspace(imageDir, labelDir string) (*Workspace, error) {
	if dirInfo, err := os.Stat(labelDir); err != nil || !dirInfo.IsDir() {
		return nil, fmt.Errorf("cannot access directory %q: %v", labelDir, err)
	}
	images, err := imageFilesInDir(imageDir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found in %q", imageDir)
	}

	return &Workspace{
		labelDir: labelDir,
		images:   images,
		sessions: make(map[string]*Session),
	}, nil
}

// Len is the number of images in the workspace.
func (w *Workspace) Len() int { return len(w.images) }

// Index is the position of the current image, starting at 0.
func (w *Workspace) Index() int { return w.current }

// ImagePath is the path of the current image.
func (w *Workspace) ImagePath() string { return w.images[w.current] }

// labelPath is the label file path of the current image.
func (w *Workspace) labelPath() string {
	return LabelPathFor(w.labelDir, w.ImagePath())
}

// Session returns the edit session for the current image, loading its label
// file on first access. A missing label file yields an empty session. Label
// lines that fail to parse are returned as problems; the valid lines are
// loaded regardless.
func (w *Workspace) Session() (*Session, []*MalformedLineError, error) {
	path := w.ImagePath()
	if s, ok := w.sessions[path]; ok {
		return s, nil, nil
	}

	records, problems, err := ReadLabelFile(w.labelPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}

	s := NewSession(records)
	w.sessions[path] = s
	return s, problems, nil
}

// Next moves to the following image. Returns false at the end of the list.
func (w *Workspace) Next() bool {
	if w.current+1 >= len(w.images) {
		return false
	}
	w.current++
	return true
}

// Prev moves to the preceding image. Returns false at the start of the list.
func (w *Workspace) Prev() bool {
	if w.current == 0 {
		return false
	}
	w.current--
	return true
}

// Goto jumps directly to the image at index i.
func (w *Workspace) Goto(i int) error {
	if i < 0 || i >= len(w.images) {
		return fmt.Errorf("image index %d out of range [0, %d)", i, len(w.images))
	}
	w.current = i
	return nil
}

// Save writes the current image's label set through the codec, overwriting
// the label file. Sessions without changes are not rewritten.
func (w *Workspace) Save() error {
	s, ok := w.sessions[w.ImagePath()]
	if !ok || !s.dirty {
		return nil
	}
	if err := WriteLabelFile(w.labelPath(), s.records); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// SaveAll writes every dirty session in the workspace.
func (w *Workspace) SaveAll() error {
	for path, s := range w.sessions {
		if !s.dirty {
			continue
		}
		if err := WriteLabelFile(LabelPathFor(w.labelDir, path), s.records); err != nil {
			return err
		}
		s.dirty = false
	}
	return nil
}

// DeleteCurrent removes the current image and its label file from disk and
// drops it from the workspace. The next image (or the new last one) becomes
// current. Deleting the only image is an error.
func (w *Workspace) DeleteCurrent() error {
	if len(w.images) == 1 {
		return fmt.Errorf("cannot delete the last image %q", w.ImagePath())
	}

	imagePath := w.ImagePath()
	if err := os.Remove(imagePath); err != nil {
		return fmt.Errorf("cannot delete image %q: %v", imagePath, err)
	}
	if err := os.Remove(w.labelPath()); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not delete label file for %q: %v", filepath.Base(imagePath), err)
	}

	delete(w.sessions, imagePath)
	w.images = append(w.images[:w.current], w.images[w.current+1:]...)
	if w.current >= len(w.images) {
		w.current = len(w.images) - 1
	}
	return nil
}

package yolabel

// Class name table functionality (darknet classes.txt / obj.names).

import (
	"fmt"
	"os"
	"strings"
)

// ClassNames maps integer class ids to human-readable names. The id of a
// name is its zero-based position in the backing list, matching the line
// number convention of darknet classes.txt files.
type ClassNames struct {
	names []string
	ids   map[string]int
}

// NewClassNames creates a table from an ordered name list.
func NewClassNames(names []string) *ClassNames {
	c := &ClassNames{
		names: append([]string(nil), names...),
		ids:   make(map[string]int, len(names)),
	}
	for i, n := range c.names {
		if _, exists := c.ids[n]; !exists {
			c.ids[n] = i
		}
	}
	return c
}

// LoadClassNames reads a classes.txt file: one class name per line, the line
// index being the class id. Blank lines at the end of the file are ignored.
func LoadClassNames(path string) (*ClassNames, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return NewClassNames(lines), nil
}

// Save writes the table to path in classes.txt format.
func (c *ClassNames) Save(path string) error {
	text := strings.Join(c.names, "\n")
	if len(c.names) > 0 {
		text += "\n"
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("cannot write class names file %q: %v", path, err)
	}
	return nil
}

// Len is the number of known classes.
func (c *ClassNames) Len() int { return len(c.names) }

// Name returns the name for id, or a generated "class<id>" placeholder when
// the id has no entry.
func (c *ClassNames) Name(id int) string {
	if c != nil && id >= 0 && id < len(c.names) && c.names[id] != "" {
		return c.names[id]
	}
	return fmt.Sprintf("class%d", id)
}

// ID returns the id for name, if the name is known.
func (c *ClassNames) ID(name string) (int, bool) {
	id, ok := c.ids[name]
	return id, ok
}

// Assign returns the id for name, appending a new entry when the name is
// not yet known. New names get the next free id, in encounter order.
func (c *ClassNames) Assign(name string) int {
	if id, ok := c.ids[name]; ok {
		return id
	}
	id := len(c.names)
	c.names = append(c.names, name)
	c.ids[name] = id
	return id
}

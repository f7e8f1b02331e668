// Package audit keeps the operator's record of confirmed wagers: the
// rendered confirmation container of every successful batch, appended to a
// single HTML file that this program never truncates.
package audit

import (
	"os"
	"strings"
	"sync"
)

// FileName is the fixed audit log in the working directory.
const FileName = "confirm_talon_container.html"

// Writer appends HTML fragments. Safe for concurrent use; a nil *Writer
// discards everything.
type Writer struct {
	mu   sync.Mutex
	path string
}

// New returns a writer appending to path, or nil if path is blank.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

// Append writes the fragment preceded by a blank-line separator.
func (w *Writer) Append(fragment string) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("<br><br>" + fragment + "\n"); err != nil {
		return err
	}
	return nil
}

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// transcript tees log output to the terminal while keeping an in-memory
// copy, so a failed run can dump the full operator-visible log to a file.
type transcript struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
}

func newTranscript(out io.Writer) *transcript {
	return &transcript{out: out}
}

func (t *transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf.Write(p)
	t.mu.Unlock()
	return t.out.Write(p)
}

// SaveErrorLog writes the captured transcript to a timestamped file in the
// working directory and returns its path.
func (t *transcript) SaveErrorLog() (string, error) {
	t.mu.Lock()
	b := append([]byte(nil), t.buf.Bytes()...)
	t.mu.Unlock()

	path := fmt.Sprintf("error_log-%d.txt", time.Now().Unix())
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

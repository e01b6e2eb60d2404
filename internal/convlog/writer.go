// Package convlog appends finished-call summaries to a JSONL file, one
// JSON object per line.
package convlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"coldcall-platform/internal/conversation"
)

type Writer struct {
	path string
	mu   sync.Mutex
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one summary line. The file is created on first use.
func (w *Writer) Append(summary conversation.Summary) error {
	line, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("convlog: marshal summary: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("convlog: open %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("convlog: append: %w", err)
	}
	return f.Close()
}

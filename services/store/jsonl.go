package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sjsage522/harvester/pkg/errors"
)

// CrawledAtField is prepended to every JSONL line
const CrawledAtField = "crawled_at"

// JSONLWriter appends one JSON object per line to a file
type JSONLWriter struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	now   func() time.Time
	lines int
}

// OpenJSONL opens filename in the output directory for appending
func (s *JSONStore) OpenJSONL(filename string) (*JSONLWriter, error) {
	path := filepath.Join(s.dir, withExt(filename, ".jsonl"))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.NewPersistence(path, "cannot open record stream", err)
	}
	return &JSONLWriter{path: path, file: f, now: s.now}, nil
}

// Path returns the file being written
func (w *JSONLWriter) Path() string {
	return w.path
}

// Lines returns how many lines were appended through this writer
func (w *JSONLWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Append writes v, which must encode to a JSON object, as one line with a
// crawled_at stamp in front of its own fields. It returns the line without
// the trailing newline.
func (w *JSONLWriter) Append(v interface{}) ([]byte, error) {
	line, err := stampedLine(v, w.now().Format(time.RFC3339))
	if err != nil {
		return nil, errors.NewPersistence(w.path, "cannot encode record", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return nil, errors.NewPersistence(w.path, "cannot append record", err)
	}
	w.lines++
	return line, nil
}

// Close flushes and closes the file
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return errors.NewPersistence(w.path, "cannot close record stream", err)
	}
	return nil
}

func stampedLine(v interface{}, crawledAt string) ([]byte, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	obj := bytes.TrimSpace(body.Bytes())
	if len(obj) < 2 || obj[0] != '{' {
		return nil, &json.UnsupportedValueError{Str: "record is not a JSON object"}
	}

	var line bytes.Buffer
	line.WriteString(`{"` + CrawledAtField + `":`)
	stamp, _ := json.Marshal(crawledAt)
	line.Write(stamp)
	if inner := bytes.TrimSpace(obj[1 : len(obj)-1]); len(inner) > 0 {
		line.WriteByte(',')
		line.Write(inner)
	}
	line.WriteByte('}')
	return line.Bytes(), nil
}

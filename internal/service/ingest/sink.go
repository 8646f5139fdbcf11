package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var csvHeader = []string{"Link", "Description", "Access", "Content"}

// CSVSink writes records as Link,Description,Access,Content rows.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
	header bool
}

// NewCSVSink writes to w; closer may be nil.
func NewCSVSink(w io.Writer, closer io.Closer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w), closer: closer}
}

func (s *CSVSink) Write(record Record) error {
	if !s.header {
		if err := s.w.Write(csvHeader); err != nil {
			return err
		}
		s.header = true
	}
	return s.w.Write([]string{record.Link.Link, record.Description, record.Access, record.Content})
}

func (s *CSVSink) Close() error {
	if !s.header {
		// header-only file for an empty catalog
		if err := s.w.Write(csvHeader); err != nil {
			return err
		}
		s.header = true
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Document is the JSONL line shape consumed by the retrieval index.
type Document struct {
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// JSONLSink writes one Document per line. Failed fetches are skipped.
type JSONLSink struct {
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLSink writes to w; closer may be nil.
func NewJSONLSink(w io.Writer, closer io.Closer) *JSONLSink {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLSink{w: bw, enc: enc, closer: closer}
}

func (s *JSONLSink) Write(record Record) error {
	if record.Err != nil {
		return nil
	}
	return s.enc.Encode(Document{URL: record.Link.Link, Content: record.Content, Description: record.Description})
}

func (s *JSONLSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// CreateFile opens path for writing, creating parent directories.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return os.Create(path)
}

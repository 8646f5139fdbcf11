package rag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is a source page: its text and where it came from.
type Document struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// LoadJSONL reads documents from a JSONL file.
func LoadJSONL(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open documents: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f)
}

// ReadJSONL decodes one document per line; blank lines are skipped and every
// line must carry a content and a url field.
func ReadJSONL(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var docs []Document
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry struct {
			URL     *string `json:"url"`
			Content *string `json:"content"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if entry.URL == nil || entry.Content == nil {
			return nil, fmt.Errorf("line %d: content and url are required", lineNo)
		}
		docs = append(docs, Document{URL: *entry.URL, Content: *entry.Content})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

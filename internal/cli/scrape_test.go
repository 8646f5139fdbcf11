package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/campus-chat/backend/internal/service/rag"
)

func TestScrapeCommandWritesCSVAndJSONL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><main><h1>Core</h1><p>Take one course.</p></main></body></html>`)
	}))
	defer server.Close()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	catalog := fmt.Sprintf(`links:
  - link: %[1]s/core
    description: core curriculum
    access: requirements
    selector: main
  - link: %[1]s/missing
    description: gone
    access: none
`, server.URL)
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog), 0o644))

	csvPath := filepath.Join(dir, "out", "data.csv")
	jsonlPath := filepath.Join(dir, "out", "data.jsonl")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"scrape", "--env-file", "", "--catalog", catalogPath, "--csv", csvPath, "--jsonl", jsonlPath})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Finished processing 2 links (1 failed).")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Link", "Description", "Access", "Content"}, rows[0])
	assert.Contains(t, rows[1][3], "Take one course.")
	assert.True(t, strings.HasPrefix(rows[2][3], "Error fetching page:"))

	docs, err := rag.LoadJSONL(jsonlPath)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, server.URL+"/core", docs[0].URL)
	assert.Contains(t, docs[0].Content, "# Core")
}

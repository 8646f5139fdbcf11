package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(100, 20)
	assert.Equal(t, []string{"hello world"}, s.Split("  hello world \n"))
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(30, 0)
	text := "first paragraph here\n\nsecond paragraph here"

	chunks := s.Split(text)
	assert.Equal(t, []string{"first paragraph here", "second paragraph here"}, chunks)
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	words := make([]string, 400)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	s := NewSplitter(100, 20)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100, "chunk %d too long", i)
	}

	// consecutive chunks share a tail/head of words
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		head := strings.Fields(chunks[i])[0]
		assert.True(t, strings.HasSuffix(prev, head), "chunk %d should overlap previous", i)
	}
}

func TestSplitFallsBackToRunes(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.Split(strings.Repeat("é", 25))

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}

func TestChunkDocumentsKeepsURL(t *testing.T) {
	s := NewSplitter(20, 0)
	chunks := s.ChunkDocuments([]Document{
		{URL: "https://a", Content: "alpha beta gamma delta epsilon"},
		{URL: "https://b", Content: "short"},
	})

	require.NotEmpty(t, chunks)
	assert.Equal(t, "https://a", chunks[0].URL)
	assert.Equal(t, Chunk{Text: "short", URL: "https://b"}, chunks[len(chunks)-1])
}

func TestNewSplitterSanitizesOverlap(t *testing.T) {
	s := NewSplitter(10, 50)
	assert.Equal(t, 0, s.Overlap)

	s = NewSplitter(0, 0)
	assert.Equal(t, DefaultChunkSize, s.Size)
}

func TestReadJSONL(t *testing.T) {
	docs, err := ReadJSONL(strings.NewReader(`{"url":"https://a","content":"alpha"}

{"url":"https://b","content":"beta","extra":1}
`))
	require.NoError(t, err)
	assert.Equal(t, []Document{{URL: "https://a", Content: "alpha"}, {URL: "https://b", Content: "beta"}}, docs)

	_, err = ReadJSONL(strings.NewReader("{\"url\":\"x\",\"content\":\"y\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadJSONL(strings.NewReader(`{"url":"x"}`))
	assert.Error(t, err)
}

package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
)

// DefaultTopK is how many chunks a query retrieves unless told otherwise.
const DefaultTopK = 3

// MetaURL is the document metadata key holding the source url.
const MetaURL = "url"

const embedBatchSize = 32

var ErrEmptyIndex = errors.New("index has no documents")

type entry struct {
	doc *schema.Document
	vec []float64
}

// Index is an in-memory cosine-similarity index over chunk embeddings.
// It implements eino's retriever.Retriever.
type Index struct {
	embedder NamedEmbedder
	topK     int

	mu      sync.RWMutex
	entries []entry
}

var _ retriever.Retriever = (*Index)(nil)

// NewIndex creates an empty index. topK <= 0 uses DefaultTopK.
func NewIndex(embedder NamedEmbedder, topK int) *Index {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Index{embedder: embedder, topK: topK}
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add embeds chunks (reusing cached vectors when a cache is given) and indexes them.
func (ix *Index) Add(ctx context.Context, chunks []Chunk, cache *Cache) error {
	if len(chunks) == 0 {
		return nil
	}

	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = contentHash(c.Text)
	}

	vectors := make([][]float64, len(chunks))
	if cache != nil {
		cached, err := cache.Get(ctx, ix.embedder.Name(), hashes)
		if err != nil {
			return err
		}
		for i, h := range hashes {
			vectors[i] = cached[h]
		}
	}

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}

	for start := 0; start < len(missing); start += embedBatchSize {
		end := min(start+embedBatchSize, len(missing))
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = chunks[idx].Text
		}
		embedded, err := ix.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(embedded) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(batch))
		}

		fresh := make(map[string][]float64, len(batch))
		for j, idx := range batch {
			vectors[idx] = embedded[j]
			fresh[hashes[idx]] = embedded[j]
		}
		if cache != nil {
			if err := cache.Put(ctx, ix.embedder.Name(), fresh); err != nil {
				return err
			}
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, c := range chunks {
		ix.entries = append(ix.entries, entry{
			doc: &schema.Document{
				ID:       fmt.Sprintf("%s#%d", hashes[i][:12], len(ix.entries)),
				Content:  c.Text,
				MetaData: map[string]any{MetaURL: c.URL},
			},
			vec: vectors[i],
		})
	}

	logging.Named("rag").Debugf("indexed %d chunks (%d embedded, %d cached)", len(chunks), len(missing), len(chunks)-len(missing))
	return nil
}

// Retrieve implements retriever.Retriever: the top-k chunks by cosine
// similarity, best first, each carrying its score.
func (ix *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := ix.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()
	if len(entries) == 0 {
		return nil, ErrEmptyIndex
	}

	vectors, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	queryVec := vectors[0]

	type scored struct {
		entry
		score float64
	}
	results := make([]scored, 0, len(entries))
	for _, e := range entries {
		score := cosine(queryVec, e.vec)
		if options.ScoreThreshold != nil && score < *options.ScoreThreshold {
			continue
		}
		results = append(results, scored{entry: e, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > topK {
		results = results[:topK]
	}

	docs := make([]*schema.Document, len(results))
	for i, r := range results {
		meta := make(map[string]any, len(r.doc.MetaData)+1)
		for k, v := range r.doc.MetaData {
			meta[k] = v
		}
		doc := &schema.Document{ID: r.doc.ID, Content: r.doc.Content, MetaData: meta}
		docs[i] = doc.WithScore(r.score)
	}
	return docs, nil
}

// SourceURL returns the url a retrieved document came from.
func SourceURL(doc *schema.Document) string {
	if doc == nil || doc.MetaData == nil {
		return ""
	}
	url, _ := doc.MetaData[MetaURL].(string)
	return url
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

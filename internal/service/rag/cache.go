package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	embedder TEXT NOT NULL,
	hash     TEXT NOT NULL,
	vector   BLOB NOT NULL,
	PRIMARY KEY (embedder, hash)
);`

// Cache persists chunk embeddings in SQLite, keyed by embedder and content
// hash, so rebuilding the index only embeds chunks it has not seen.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached vectors for the given hashes; misses are absent.
func (c *Cache) Get(ctx context.Context, embedder string, hashes []string) (map[string][]float64, error) {
	found := make(map[string][]float64, len(hashes))
	const batch = 500

	for start := 0; start < len(hashes); start += batch {
		part := hashes[start:min(start+batch, len(hashes))]
		args := make([]any, 0, len(part)+1)
		args = append(args, embedder)
		for _, h := range part {
			args = append(args, h)
		}

		query := "SELECT hash, vector FROM embeddings WHERE embedder = ? AND hash IN (" +
			strings.TrimSuffix(strings.Repeat("?,", len(part)), ",") + ")"
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query embedding cache: %w", err)
		}
		for rows.Next() {
			var (
				hash string
				blob []byte
			)
			if err := rows.Scan(&hash, &blob); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan embedding cache: %w", err)
			}
			found[hash] = decodeVector(blob)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return found, nil
}

// Put stores vectors keyed by content hash.
func (c *Cache) Put(ctx context.Context, embedder string, vectors map[string][]float64) error {
	if len(vectors) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO embeddings (embedder, hash, vector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare cache write: %w", err)
	}
	defer stmt.Close()

	for hash, vec := range vectors {
		if _, err := stmt.ExecContext(ctx, embedder, hash, encodeVector(vec)); err != nil {
			return fmt.Errorf("write embedding cache: %w", err)
		}
	}
	return tx.Commit()
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	vec := make([]float64, len(buf)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

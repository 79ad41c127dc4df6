package store

import (
	"companionbot/internal/logging"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"
)

// Chunk is a single indexed unit of workspace text: a markdown section
// split by the chunking rule (split on `##`, then a ~500-character
// soft limit).
type Chunk struct {
	ID          string
	Source      string
	Text        string
	ContentHash string
	CreatedAt   time.Time
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func newChunkID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return "chunk_" + string(b)
}

// InsertChunk embeds and persists one chunk under a freshly generated
// random id and returns that id. A nil embedding engine degrades gracefully to
// keyword-only indexing (the chunk is stored and FTS-indexed, but has no
// vector to match against).
func (s *LocalStore) InsertChunk(ctx context.Context, source, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newChunkID()
	hash := contentHash(text)

	var embVec []float32
	if s.embeddingEngine != nil {
		v, err := s.embeddingEngine.Embed(ctx, text)
		if err != nil {
			return "", fmt.Errorf("failed to embed chunk: %w", err)
		}
		embVec = v
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO chunks (id, source, text, content_hash, embedding) VALUES (?, ?, ?, ?, ?)",
		id, source, text, hash, encodeEmbedding(embVec),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert chunk: %w", err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(
		"INSERT INTO chunks_fts (id, source, text) VALUES (?, ?, ?)",
		id, source, text,
	); err != nil {
		return "", fmt.Errorf("failed to index chunk in fts: %w", err)
	}

	if s.vectorExt && len(embVec) > 0 {
		if _, err := tx.Exec(
			"INSERT INTO chunks_vec (rowid, embedding) VALUES (?, ?)",
			rowid, encodeEmbedding(embVec),
		); err != nil {
			return "", fmt.Errorf("failed to index chunk in vec0: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	s.invalidateVectorCache()
	logging.StoreDebug("inserted chunk %s from source %s (%d bytes)", id, source, len(text))
	return id, nil
}

// DeleteChunksBySource removes all chunks originating from source, along
// with their FTS and vec0 entries.
func (s *LocalStore) DeleteChunksBySource(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT rowid, id FROM chunks WHERE source = ?", source)
	if err != nil {
		return err
	}
	var rowids []int64
	var ids []string
	for rows.Next() {
		var rowid int64
		var id string
		if err := rows.Scan(&rowid, &id); err != nil {
			rows.Close()
			return err
		}
		rowids = append(rowids, rowid)
		ids = append(ids, id)
	}
	rows.Close()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE source = ?", source); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chunks_fts WHERE source = ?", source); err != nil {
		return err
	}
	if s.vectorExt {
		for _, rowid := range rowids {
			if _, err := tx.Exec("DELETE FROM chunks_vec WHERE rowid = ?", rowid); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.invalidateVectorCache()
	logging.StoreDebug("deleted %d chunks for source %s", len(ids), source)
	return nil
}

// ReindexAll clears FTS and the vector cache/table, then reloads chunks
// from the provided source map (workspace memory files keyed by source
// path, already split into chunk texts by the caller), matching the
// reindex contract: "clear FTS, invalidate vector cache, reload all
// chunks, batch-insert to FTS; the vector cache rebuilds lazily on first
// query."
func (s *LocalStore) ReindexAll(ctx context.Context, sources map[string][]string) error {
	s.mu.Lock()
	if _, err := s.db.Exec("DELETE FROM chunks"); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM chunks_fts"); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear fts: %w", err)
	}
	if s.vectorExt {
		if _, err := s.db.Exec("DELETE FROM chunks_vec"); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to clear vec0: %w", err)
		}
	}
	s.invalidateVectorCacheLocked()
	s.mu.Unlock()

	count := 0
	for source, texts := range sources {
		for _, text := range texts {
			if _, err := s.InsertChunk(ctx, source, text); err != nil {
				return fmt.Errorf("failed to reindex chunk from %s: %w", source, err)
			}
			count++
		}
	}
	logging.Store("reindex complete: %d chunks from %d sources", count, len(sources))
	return nil
}

func (s *LocalStore) invalidateVectorCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheValid = false
	s.vecCache = nil
}

func (s *LocalStore) invalidateVectorCacheLocked() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheValid = false
	s.vecCache = nil
}

// Package store provides the SQLite-backed hybrid vector + full-text memory
// store: a dense-vector side (sqlite-vec when available, brute-force cosine
// otherwise) fused with an FTS5 keyword side, plus a TraceStore for
// observability of completed LLM turns.
package store

import (
	"companionbot/internal/embedding"
	"companionbot/internal/logging"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// LocalStore backs the hybrid search engine: one `chunks`
// table holding source text and its embedding, an FTS5 virtual table for
// keyword ranking, and (when sqlite-vec is available) a vec0 virtual table
// for accelerated nearest-neighbor lookups.
type LocalStore struct {
	db              *sql.DB
	mu              sync.RWMutex
	dbPath          string
	embeddingEngine embedding.EmbeddingEngine
	dim             int  // embedding dimensionality; 0 until an engine is set
	vectorExt       bool // sqlite-vec vec0 available
	requireVec      bool // require vec0 or fail fast at startup
	traceStore      *TraceStore

	cacheMu    sync.RWMutex
	vecCache   []cachedEmbedding // brute-force fallback cache
	cacheValid bool
}

type cachedEmbedding struct {
	rowid     int64
	id        string
	embedding []float32
}

// NewLocalStore opens (creating if necessary) the SQLite database at path.
// dim is the embedding dimensionality to size the vec0 table with; pass 0
// to defer vec0 creation until SetEmbeddingEngine is called. requireVec
// makes startup fail when the sqlite-vec extension cannot be loaded.
func NewLocalStore(path string, dim int, requireVec bool) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("initializing LocalStore at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL gives a large write speedup under WAL and is safe
	// because WAL already provides crash recovery.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	store := &LocalStore{db: db, dbPath: path, dim: dim, requireVec: requireVec}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	store.detectVecExtension()
	if store.requireVec && !store.vectorExt {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available; build with the sqlite_vec tag and cgo to enable ANN search")
	}
	if store.vectorExt && dim > 0 {
		if err := store.ensureVecTable(dim); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create vec0 table: %w", err)
		}
		logging.Store("sqlite-vec extension detected and enabled (dim=%d)", dim)
	} else if !store.vectorExt {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec extension not available; falling back to brute-force cosine scan")
	}

	traceStore, err := NewTraceStore(db, path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to initialize trace store: %v", err)
		db.Close()
		return nil, fmt.Errorf("failed to initialize trace store: %w", err)
	}
	store.traceStore = traceStore

	logging.Store("LocalStore initialization complete (chunks, fts5, vec=%v)", store.vectorExt)
	return store, nil
}

// initialize creates the chunks table and its FTS5 companion index.
func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	CREATE INDEX IF NOT EXISTS idx_chunks_hash ON chunks(content_hash);

	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		id UNINDEXED, source, text, tokenize='unicode61'
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create chunks schema: %w", err)
	}
	return nil
}

// ensureVecTable creates the vec0 virtual table sized to dim if it does not
// exist yet; an existing table is left as is. SetEmbeddingEngine drops the
// table before calling it when the dimensionality changes.
func (s *LocalStore) ensureVecTable(dim int) error {
	_, err := s.db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(embedding float[%d])", dim,
	))
	return err
}

// SetEmbeddingEngine configures the embedding engine used to embed new
// chunks and queries. Must be called before InsertChunk/HybridSearch when
// dense-vector matching is desired.
func (s *LocalStore) SetEmbeddingEngine(engine embedding.EmbeddingEngine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingEngine = engine
	if engine == nil {
		return nil
	}
	dim := engine.Dimensions()
	if dim == s.dim {
		return nil
	}
	s.dim = dim
	s.invalidateVectorCacheLocked()
	if s.vectorExt {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS chunks_vec"); err != nil {
			return fmt.Errorf("failed to drop stale vec0 table: %w", err)
		}
		return s.ensureVecTable(dim)
	}
	return nil
}

// GetTraceStore returns the dedicated trace store for LLM-turn observability.
func (s *LocalStore) GetTraceStore() *TraceStore {
	return s.traceStore
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	logging.Store("closing LocalStore database connection")
	return s.db.Close()
}

// GetDB returns the underlying SQL database connection.
func (s *LocalStore) GetDB() *sql.DB {
	return s.db
}

// detectVecExtension attempts to create a vec0 virtual table to see if
// sqlite-vec is available in this build.
func (s *LocalStore) detectVecExtension() {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// cosineSimilarity32 is the float32 variant used on the hot embedding path.
func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GetStats returns database statistics as row counts keyed by table name.
func (s *LocalStore) GetStats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetStats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{"chunks"}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

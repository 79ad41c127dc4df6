package store

import (
	"companionbot/internal/logging"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// SearchResult is a single hybrid-search hit.
type SearchResult struct {
	ID     string
	Source string
	Text   string
	Score  float64
}

// DefaultVectorWeight and DefaultKeywordWeight are the fusion weights from
// Fusion: fusedScore = w_v·vector + w_k·keywordNormalized.
const (
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
	vectorMinScore       = 0.2
)

var keepAlphanumericHangul = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// normalizeKeywordQuery strips non-alphanumeric/Hangul characters, splits
// on whitespace, quotes each token, and joins with OR — the FTS5 MATCH
// expression syntax for "any of these tokens".
func normalizeKeywordQuery(query string) string {
	cleaned := keepAlphanumericHangul.ReplaceAllString(query, " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = fmt.Sprintf(`"%s"`, strings.ReplaceAll(f, `"`, `""`))
	}
	return strings.Join(quoted, " OR ")
}

// HybridSearch fuses dense-vector cosine similarity with BM25 keyword
// ranking: both sides fetch 2·topK candidates, BM25 scores are
// min-max normalized to [0,1] and inverted (lower raw bm25 = better =
// higher normalized score), then fused with vectorWeight/keywordWeight
// and deduplicated by source + first 100 characters of text.
func (s *LocalStore) HybridSearch(ctx context.Context, query string, topK int, vectorWeight, keywordWeight float64) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if vectorWeight == 0 && keywordWeight == 0 {
		vectorWeight, keywordWeight = DefaultVectorWeight, DefaultKeywordWeight
	}

	var (
		wg          sync.WaitGroup
		vectorHits  []vectorHit
		vectorErr   error
		keywordHits []keywordHit
		keywordErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.vectorSearch(ctx, query, 2*topK, vectorMinScore)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = s.keywordSearch(normalizeKeywordQuery(query), 2*topK)
	}()
	wg.Wait()

	if vectorErr != nil {
		logging.Get(logging.CategoryStore).Warn("vector search failed: %v", vectorErr)
	}
	if keywordErr != nil {
		logging.Get(logging.CategoryStore).Warn("keyword search failed: %v", keywordErr)
	}

	keywordNorm := normalizeBM25(keywordHits)

	fused := make(map[string]SearchResult)
	dedupKeys := make(map[string]string) // coarse dedup key -> winning id

	addCandidate := func(id, source, text string, score float64) {
		coarseKey := source + coarsePrefix(text, 100)
		if existingID, ok := dedupKeys[coarseKey]; ok {
			if existing, ok := fused[existingID]; ok && existing.Score >= score {
				return
			}
			delete(fused, existingID)
		}
		dedupKeys[coarseKey] = id
		fused[id] = SearchResult{ID: id, Source: source, Text: text, Score: score}
	}

	for _, h := range vectorHits {
		score := vectorWeight * h.similarity
		if existing, ok := fused[h.id]; ok {
			score += existing.Score
		}
		addCandidate(h.id, h.source, h.text, score)
	}
	for i, h := range keywordHits {
		score := keywordWeight * keywordNorm[i]
		if existing, ok := fused[h.id]; ok {
			score += existing.Score
		}
		addCandidate(h.id, h.source, h.text, score)
	}

	results := make([]SearchResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func coarsePrefix(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}

type vectorHit struct {
	id         string
	source     string
	text       string
	similarity float64
}

type keywordHit struct {
	id      string
	source  string
	text    string
	bm25Raw float64
}

// vectorSearch returns up to limit chunks whose cosine similarity to the
// query embedding exceeds minScore, using vec0 KNN when available and a
// brute-force in-memory scan otherwise.
func (s *LocalStore) vectorSearch(ctx context.Context, query string, limit int, minScore float64) ([]vectorHit, error) {
	s.mu.RLock()
	engine := s.embeddingEngine
	useVec := s.vectorExt
	s.mu.RUnlock()

	if engine == nil {
		return nil, nil
	}
	queryEmb, err := engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if useVec {
		hits, err := s.vectorSearchVec0(queryEmb, limit, minScore)
		if err == nil {
			return hits, nil
		}
		logging.Get(logging.CategoryStore).Warn("vec0 search failed, falling back to brute force: %v", err)
	}
	return s.vectorSearchBruteForce(queryEmb, limit, minScore)
}

func (s *LocalStore) vectorSearchVec0(queryEmb []float32, limit int, minScore float64) ([]vectorHit, error) {
	rows, err := s.db.Query(
		`SELECT c.rowid, c.id, c.source, c.text, v.distance
		 FROM chunks_vec v JOIN chunks c ON c.rowid = v.rowid
		 WHERE v.embedding MATCH ? AND v.k = ?
		 ORDER BY v.distance`,
		encodeEmbedding(queryEmb), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []vectorHit
	for rows.Next() {
		var rowid int64
		var id, source, text string
		var distance float64
		if err := rows.Scan(&rowid, &id, &source, &text, &distance); err != nil {
			continue
		}
		similarity := 1 - distance // vec0 cosine distance -> similarity
		if similarity < minScore {
			continue
		}
		hits = append(hits, vectorHit{id: id, source: source, text: text, similarity: similarity})
	}
	return hits, nil
}

func (s *LocalStore) vectorSearchBruteForce(queryEmb []float32, limit int, minScore float64) ([]vectorHit, error) {
	cache, err := s.loadVectorCache()
	if err != nil {
		return nil, err
	}

	type scored struct {
		cachedEmbedding
		similarity float64
	}
	var candidates []scored
	for _, c := range cache {
		sim := cosineSimilarity32(queryEmb, c.embedding)
		if sim < minScore {
			continue
		}
		candidates = append(candidates, scored{cachedEmbedding: c, similarity: sim})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]vectorHit, 0, len(candidates))
	for _, c := range candidates {
		var source, text string
		if err := s.db.QueryRow("SELECT source, text FROM chunks WHERE id = ?", c.id).Scan(&source, &text); err != nil {
			continue
		}
		hits = append(hits, vectorHit{id: c.id, source: source, text: text, similarity: c.similarity})
	}
	return hits, nil
}

// loadVectorCache lazily rebuilds the brute-force embedding cache; it is
// invalidated by any chunk mutation and reloaded on the next query, per
// the "invalidate, lazy-reload on next query" contract.
func (s *LocalStore) loadVectorCache() ([]cachedEmbedding, error) {
	s.cacheMu.RLock()
	if s.cacheValid {
		cache := s.vecCache
		s.cacheMu.RUnlock()
		return cache, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheValid {
		return s.vecCache, nil
	}

	rows, err := s.db.Query("SELECT rowid, id, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cache []cachedEmbedding
	for rows.Next() {
		var c cachedEmbedding
		var blob []byte
		if err := rows.Scan(&c.rowid, &c.id, &blob); err != nil {
			continue
		}
		c.embedding = decodeEmbedding(blob)
		if len(c.embedding) == 0 {
			continue
		}
		cache = append(cache, c)
	}
	s.vecCache = cache
	s.cacheValid = true
	return cache, nil
}

// keywordSearch ranks chunks by BM25 over the FTS5 index. An empty
// normalized query returns no hits rather than matching everything.
func (s *LocalStore) keywordSearch(normalizedQuery string, limit int) ([]keywordHit, error) {
	if normalizedQuery == "" {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT id, source, text, bm25(chunks_fts) AS score
		 FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY score LIMIT ?`,
		normalizedQuery, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []keywordHit
	for rows.Next() {
		var h keywordHit
		if err := rows.Scan(&h.id, &h.source, &h.text, &h.bm25Raw); err != nil {
			continue
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// normalizeBM25 rescales raw bm25 scores (lower = better) to [0,1] and
// inverts them (higher = better), linearly against the batch's [min,max].
func normalizeBM25(hits []keywordHit) []float64 {
	norm := make([]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}
	min, max := hits[0].bm25Raw, hits[0].bm25Raw
	for _, h := range hits {
		if h.bm25Raw < min {
			min = h.bm25Raw
		}
		if h.bm25Raw > max {
			max = h.bm25Raw
		}
	}
	spread := max - min
	for i, h := range hits {
		if spread == 0 {
			norm[i] = 1
			continue
		}
		norm[i] = 1 - (h.bm25Raw-min)/spread
	}
	return norm
}

package store

import (
	"companionbot/internal/logging"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// TraceStore persists one row per completed LLM turn for observability.
// It is not part of the functional contract and is not
// queried by any core operation; it exists so a completed turn's model,
// token usage, duration, and success can be inspected after the fact.
type TraceStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Trace is one observed LLM turn.
type Trace struct {
	ID           string
	ChatID       string
	Model        string
	InputTokens  int
	OutputTokens int
	DurationMs   int64
	Success      bool
	ErrorMessage string
	ToolCalls    int
	CreatedAt    time.Time
}

// NewTraceStore creates a TraceStore using an existing database connection.
func NewTraceStore(db *sql.DB, dbPath string) (*TraceStore, error) {
	ts := &TraceStore{db: db, dbPath: dbPath}
	if err := ts.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure trace schema: %w", err)
	}
	return ts, nil
}

func (ts *TraceStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS traces (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		model TEXT,
		input_tokens INTEGER,
		output_tokens INTEGER,
		duration_ms INTEGER,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		tool_calls INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_traces_chat ON traces(chat_id);
	CREATE INDEX IF NOT EXISTS idx_traces_created ON traces(created_at);
	CREATE INDEX IF NOT EXISTS idx_traces_success ON traces(success);
	`
	_, err := ts.db.Exec(schema)
	return err
}

// StoreTrace persists a completed turn. Best-effort: the caller decides
// whether a write failure here should affect the turn's own outcome (it
// should not — observability never blocks the functional path).
func (ts *TraceStore) StoreTrace(trace *Trace) error {
	timer := logging.StartTimer(logging.CategoryStore, "StoreTrace")
	defer timer.Stop()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	_, err := ts.db.Exec(`
		INSERT OR REPLACE INTO traces
		(id, chat_id, model, input_tokens, output_tokens, duration_ms, success, error_message, tool_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.ChatID, trace.Model, trace.InputTokens, trace.OutputTokens,
		trace.DurationMs, trace.Success, trace.ErrorMessage, trace.ToolCalls,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to store trace %s: %v", trace.ID, err)
		return err
	}
	return nil
}

// GetRecentTraces retrieves the most recent traces across all chats.
func (ts *TraceStore) GetRecentTraces(limit int) ([]Trace, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := ts.db.Query(`
		SELECT id, chat_id, model, input_tokens, output_tokens, duration_ms, success, error_message, tool_calls, created_at
		FROM traces ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ts.scanTraces(rows)
}

// GetTracesByChat retrieves all traces for a specific chat, oldest first.
func (ts *TraceStore) GetTracesByChat(chatID string) ([]Trace, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	rows, err := ts.db.Query(`
		SELECT id, chat_id, model, input_tokens, output_tokens, duration_ms, success, error_message, tool_calls, created_at
		FROM traces WHERE chat_id = ? ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ts.scanTraces(rows)
}

// GetTraceStats summarizes turn counts, success rate, and token usage.
func (ts *TraceStore) GetTraceStats() (map[string]interface{}, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	stats := make(map[string]interface{})

	var total, succeeded int64
	var inputTokens, outputTokens, durationMs int64
	if err := ts.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(success),0) FROM traces").Scan(&total, &succeeded); err != nil {
		return nil, err
	}
	if err := ts.db.QueryRow(
		"SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0), COALESCE(SUM(duration_ms),0) FROM traces",
	).Scan(&inputTokens, &outputTokens, &durationMs); err != nil {
		return nil, err
	}

	stats["total_turns"] = total
	stats["successful_turns"] = succeeded
	stats["total_input_tokens"] = inputTokens
	stats["total_output_tokens"] = outputTokens
	stats["total_duration_ms"] = durationMs
	if total > 0 {
		stats["success_rate"] = float64(succeeded) / float64(total)
	}
	return stats, nil
}

// CleanupOldTraces deletes traces older than retentionDays, returning the
// number removed.
func (ts *TraceStore) CleanupOldTraces(retentionDays int) (int64, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := ts.db.Exec("DELETE FROM traces WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (ts *TraceStore) scanTraces(rows *sql.Rows) ([]Trace, error) {
	var traces []Trace
	for rows.Next() {
		var t Trace
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Model, &t.InputTokens, &t.OutputTokens,
			&t.DurationMs, &t.Success, &t.ErrorMessage, &t.ToolCalls, &t.CreatedAt); err != nil {
			return nil, err
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// Close is a no-op: the underlying *sql.DB is owned by LocalStore.
func (ts *TraceStore) Close() error {
	return nil
}

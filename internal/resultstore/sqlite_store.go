package resultstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"

	"github.com/localrivet/summbench/internal/errortypes"
	"github.com/localrivet/summbench/internal/schema"
	"github.com/localrivet/summbench/internal/vector"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		dataset TEXT NOT NULL DEFAULT '',
		strategies TEXT NOT NULL DEFAULT '',
		samples INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL,
		sample_index INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		url TEXT NOT NULL,
		latency_ms INTEGER NOT NULL,
		tokens_input INTEGER NOT NULL,
		tokens_output INTEGER NOT NULL,
		cost_usd REAL NOT NULL,
		char_count INTEGER NOT NULL,
		judge_status TEXT NOT NULL,
		judge_score REAL NOT NULL,
		judge_critique TEXT NOT NULL,
		rouge_l_f1 REAL NOT NULL,
		bert_score_f1 REAL NOT NULL,
		quality_score REAL NOT NULL,
		summary_content TEXT NOT NULL,
		baseline_summary TEXT NOT NULL,
		baseline_char_count INTEGER NOT NULL,
		refined INTEGER NOT NULL,
		PRIMARY KEY (run_id, sample_index, strategy)
	);`,
	`CREATE TABLE IF NOT EXISTS embeddings (
		key TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);`,
}

// SQLiteStore is a ResultStore backed by a single SQLite connection. It also
// serves as the persistent embedding cache.
type SQLiteStore struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	dbPath string
	logger *slog.Logger
}

var (
	_ ResultStore  = (*SQLiteStore)(nil)
	_ vector.Store = (*SQLiteStore)(nil)
)

// Open opens or creates the database at dbPath and its tables.
func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errortypes.DatabaseError(err, "failed to create database directory").WithField("path", dbPath)
		}
	}

	conn, err := sqlite.OpenConn(dbPath, sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE)
	if err != nil {
		return nil, errortypes.DatabaseError(err, "failed to open SQLite database").WithField("path", dbPath)
	}

	s := &SQLiteStore{conn: conn, dbPath: dbPath, logger: logger.With("component", "resultstore")}
	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	for _, query := range schemaStatements {
		stmt, err := s.conn.Prepare(query)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare create table statement")
		}
		_, err = stmt.Step()
		stmt.Reset()
		if err != nil {
			return errortypes.DatabaseError(err, "failed to create table")
		}
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the store and releases any resources.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// with serializes access to the connection and makes the statement
// interruptible by ctx.
func (s *SQLiteStore) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errortypes.DatabaseError(fmt.Errorf("store is closed"), "database unavailable")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.conn.SetInterrupt(ctx.Done())
	defer s.conn.SetInterrupt(nil)
	return fn(s.conn)
}

// SaveRun inserts or replaces a run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`
		INSERT OR REPLACE INTO runs (id, started_at, finished_at, status, model, dataset, strategies, samples, records, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare run insert")
		}
		defer stmt.Reset()

		stmt.BindText(1, run.ID)
		stmt.BindInt64(2, run.StartedAt.UnixMilli())
		stmt.BindInt64(3, unixMilli(run.FinishedAt))
		stmt.BindText(4, run.Status)
		stmt.BindText(5, run.Model)
		stmt.BindText(6, run.Dataset)
		stmt.BindText(7, joinStrategies(run.Strategies))
		stmt.BindInt64(8, int64(run.Samples))
		stmt.BindInt64(9, int64(run.Records))
		stmt.BindText(10, run.Error)

		if _, err := stmt.Step(); err != nil {
			return errortypes.DatabaseError(err, "failed to save run").WithField("run_id", run.ID)
		}
		return nil
	})
}

const runColumns = `id, started_at, finished_at, status, model, dataset, strategies, samples, records, error`

// GetRun returns a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run *Run
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`SELECT ` + runColumns + ` FROM runs WHERE id = ?;`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare run select")
		}
		defer stmt.Reset()
		stmt.BindText(1, id)

		hasRow, err := stmt.Step()
		if err != nil {
			return errortypes.DatabaseError(err, "failed to load run").WithField("run_id", id)
		}
		if !hasRow {
			return fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		r := scanRun(stmt)
		run = &r
		return nil
	})
	return run, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?;`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare run list")
		}
		defer stmt.Reset()
		if limit <= 0 {
			limit = -1
		}
		stmt.BindInt64(1, int64(limit))

		for {
			hasRow, err := stmt.Step()
			if err != nil {
				return errortypes.DatabaseError(err, "failed to list runs")
			}
			if !hasRow {
				break
			}
			runs = append(runs, scanRun(stmt))
		}
		return nil
	})
	return runs, err
}

func scanRun(stmt *sqlite.Stmt) Run {
	return Run{
		ID:         stmt.ColumnText(0),
		StartedAt:  fromUnixMilli(stmt.ColumnInt64(1)),
		FinishedAt: fromUnixMilli(stmt.ColumnInt64(2)),
		Status:     stmt.ColumnText(3),
		Model:      stmt.ColumnText(4),
		Dataset:    stmt.ColumnText(5),
		Strategies: splitStrategies(stmt.ColumnText(6)),
		Samples:    int(stmt.ColumnInt64(7)),
		Records:    int(stmt.ColumnInt64(8)),
		Error:      stmt.ColumnText(9),
	}
}

// SaveRecord stores one result record of a run.
func (s *SQLiteStore) SaveRecord(ctx context.Context, runID string, rec schema.ResultRecord) error {
	return s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`
		INSERT OR REPLACE INTO records (run_id, sample_index, strategy, url, latency_ms, tokens_input, tokens_output,
			cost_usd, char_count, judge_status, judge_score, judge_critique, rouge_l_f1, bert_score_f1,
			quality_score, summary_content, baseline_summary, baseline_char_count, refined)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare record insert")
		}
		defer stmt.Reset()

		stmt.BindText(1, runID)
		stmt.BindInt64(2, int64(rec.SampleIndex))
		stmt.BindText(3, string(rec.Strategy))
		stmt.BindText(4, rec.URL)
		stmt.BindInt64(5, rec.LatencyMS)
		stmt.BindInt64(6, int64(rec.TokensInput))
		stmt.BindInt64(7, int64(rec.TokensOutput))
		stmt.BindFloat(8, rec.CostUSD)
		stmt.BindInt64(9, int64(rec.CharCount))
		stmt.BindText(10, string(rec.JudgeStatus))
		stmt.BindFloat(11, rec.JudgeScore)
		stmt.BindText(12, rec.JudgeCritique)
		stmt.BindFloat(13, rec.RougeLF1)
		stmt.BindFloat(14, rec.BertScoreF1)
		stmt.BindFloat(15, rec.QualityScore)
		stmt.BindText(16, rec.SummaryContent)
		stmt.BindText(17, rec.BaselineSummary)
		stmt.BindInt64(18, int64(rec.BaselineCharCount))
		stmt.BindBool(19, rec.Refined)

		if _, err := stmt.Step(); err != nil {
			return errortypes.DatabaseError(err, "failed to save record").
				WithField("run_id", runID).
				WithField("url", rec.URL)
		}
		return nil
	})
}

// ListRecords returns the records of a run ordered by sample and strategy.
// An empty strategy returns every strategy.
func (s *SQLiteStore) ListRecords(ctx context.Context, runID string, strategy schema.Strategy) ([]schema.ResultRecord, error) {
	var records []schema.ResultRecord
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`
		SELECT sample_index, strategy, url, latency_ms, tokens_input, tokens_output, cost_usd, char_count,
			judge_status, judge_score, judge_critique, rouge_l_f1, bert_score_f1, quality_score,
			summary_content, baseline_summary, baseline_char_count, refined
		FROM records
		WHERE run_id = ? AND (? = '' OR strategy = ?)
		ORDER BY sample_index, strategy;`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare record select")
		}
		defer stmt.Reset()
		stmt.BindText(1, runID)
		stmt.BindText(2, string(strategy))
		stmt.BindText(3, string(strategy))

		for {
			hasRow, err := stmt.Step()
			if err != nil {
				return errortypes.DatabaseError(err, "failed to list records").WithField("run_id", runID)
			}
			if !hasRow {
				break
			}
			records = append(records, schema.ResultRecord{
				SampleIndex:       int(stmt.ColumnInt64(0)),
				Strategy:          schema.Strategy(stmt.ColumnText(1)),
				URL:               stmt.ColumnText(2),
				LatencyMS:         stmt.ColumnInt64(3),
				TokensInput:       int(stmt.ColumnInt64(4)),
				TokensOutput:      int(stmt.ColumnInt64(5)),
				CostUSD:           stmt.ColumnFloat(6),
				CharCount:         int(stmt.ColumnInt64(7)),
				JudgeStatus:       schema.Verdict(stmt.ColumnText(8)),
				JudgeScore:        stmt.ColumnFloat(9),
				JudgeCritique:     stmt.ColumnText(10),
				RougeLF1:          stmt.ColumnFloat(11),
				BertScoreF1:       stmt.ColumnFloat(12),
				QualityScore:      stmt.ColumnFloat(13),
				SummaryContent:    stmt.ColumnText(14),
				BaselineSummary:   stmt.ColumnText(15),
				BaselineCharCount: int(stmt.ColumnInt64(16)),
				Refined:           stmt.ColumnInt64(17) != 0,
			})
		}
		return nil
	})
	return records, err
}

// GetEmbedding returns a persisted embedding.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var embedding []float32
	var found bool
	err := s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`SELECT embedding FROM embeddings WHERE key = ?;`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare embedding select")
		}
		defer stmt.Reset()
		stmt.BindText(1, key)

		hasRow, err := stmt.Step()
		if err != nil {
			return errortypes.DatabaseError(err, "failed to load embedding")
		}
		if !hasRow {
			return nil
		}

		buf := make([]byte, stmt.ColumnLen(0))
		stmt.ColumnBytes(0, buf)
		embedding, err = vector.BytesToFloat32Slice(buf)
		if err != nil {
			return fmt.Errorf("failed to decode embedding %s: %w", key, err)
		}
		found = true
		return nil
	})
	return embedding, found, err
}

// PutEmbedding persists an embedding.
func (s *SQLiteStore) PutEmbedding(ctx context.Context, key string, embedding []float32) error {
	data, err := vector.Float32SliceToBytes(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	return s.with(ctx, func(conn *sqlite.Conn) error {
		stmt, err := conn.Prepare(`INSERT OR REPLACE INTO embeddings (key, embedding, created_at) VALUES (?, ?, ?);`)
		if err != nil {
			return errortypes.DatabaseError(err, "failed to prepare embedding insert")
		}
		defer stmt.Reset()
		stmt.BindText(1, key)
		stmt.BindBytes(2, data)
		stmt.BindInt64(3, time.Now().Unix())

		if _, err := stmt.Step(); err != nil {
			return errortypes.DatabaseError(err, "failed to save embedding")
		}
		return nil
	})
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func joinStrategies(strategies []schema.Strategy) string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

func splitStrategies(s string) []schema.Strategy {
	if s == "" {
		return nil
	}
	var out []schema.Strategy
	for _, name := range strings.Split(s, ",") {
		out = append(out, schema.Strategy(name))
	}
	return out
}

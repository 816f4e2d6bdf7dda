// Package history keeps a DuckDB-backed log of past analyses.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// Store records one summary row per analyzed file.
type Store struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// Open opens (or creates) the history database at dbPath. An empty path
// gives an in-memory database.
func Open(dbPath string, threads int, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("history")
	if threads <= 0 {
		threads = 2
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			id          VARCHAR PRIMARY KEY,
			batch_id    VARCHAR NOT NULL,
			position    INTEGER NOT NULL,
			file_path   VARCHAR NOT NULL,
			error_count INTEGER NOT NULL,
			token_count INTEGER NOT NULL,
			valid       BOOLEAN NOT NULL,
			analyzed_at BIGINT  NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Info("history store ready", logger.F("path", displayPath(dbPath)))
	return &Store{db: db, log: log, now: time.Now}, nil
}

// Record inserts one row per result under batchID, keeping result order.
func (s *Store) Record(ctx context.Context, batchID string, results []*models.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analyses (id, batch_id, position, file_path, error_count, token_count, valid, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := s.now().UnixMilli()
	for i, r := range results {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), batchID, i, r.FilePath,
			len(r.Errors), len(r.Tokens), r.Valid(), ts)
		if err != nil {
			return fmt.Errorf("insert %s: %w", r.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("batch recorded", logger.F("batch", batchID), logger.Count(len(results)))
	return nil
}

// Recent returns up to limit rows, newest batch first, files in submission order.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, file_path, error_count, token_count, valid, analyzed_at
		FROM analyses
		ORDER BY analyzed_at DESC, batch_id, position
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0)
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.FilePath, &e.ErrorCount, &e.TokenCount, &e.Valid, &e.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes rows older than maxAge and returns how many were removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE analyzed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("history pruned", logger.Count(int(n)))
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func displayPath(p string) string {
	if p == "" {
		return ":memory:"
	}
	return p
}

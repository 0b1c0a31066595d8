// Package store persists run audit trails: one row per run with its full
// metadata, and one row per extracted record with provenance. The store is
// optional; runs work without it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/catalog-group/pricebook-cli/internal/model"
)

// SQLiteStore implements the audit store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	natural_key TEXT NOT NULL,
	surrogate   INTEGER NOT NULL DEFAULT 0,
	page        INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	fields      TEXT NOT NULL,
	prices      TEXT,
	layers      TEXT NOT NULL,
	provenance  TEXT NOT NULL,
	PRIMARY KEY (run_id, natural_key)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists the run metadata and its final records in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *model.RunResult, records []model.ProductRecord) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, document, status, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		result.RunID, result.DocumentPath, string(result.Status), string(resultJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", result.RunID)
	}

	for _, rec := range records {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal fields")
		}
		pricesJSON, err := json.Marshal(rec.Prices)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal prices")
		}
		layersJSON, err := json.Marshal(rec.Layers)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal layers")
		}
		provJSON, err := json.Marshal(rec.Provenance)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal provenance")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO records (run_id, natural_key, surrogate, page, confidence, fields, prices, layers, provenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, rec.NaturalKey, rec.Surrogate, rec.PageIndex, rec.Confidence,
			string(fieldsJSON), string(pricesJSON), string(layersJSON), string(provJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", rec.NaturalKey)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// GetRun loads one run's metadata by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, runID)

	var resultJSON string
	err := row.Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	var result model.RunResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &result, nil
}

// RunFilter narrows ListRuns output.
type RunFilter struct {
	Status   model.RunStatus
	Document string
	Limit    int
}

// ListRuns returns run metadata newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunResult, error) {
	query := `SELECT result FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Document != "" {
		query += ` AND document = ?`
		args = append(args, filter.Document)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var results []model.RunResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var r model.RunResult
		if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// GetRecords loads one run's persisted records in their original order.
func (s *SQLiteStore) GetRecords(ctx context.Context, runID string) ([]model.ProductRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT natural_key, surrogate, page, confidence, fields, prices, layers, provenance
		 FROM records WHERE run_id = ? ORDER BY page, natural_key`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get records")
	}
	defer rows.Close()

	var records []model.ProductRecord
	for rows.Next() {
		var rec model.ProductRecord
		var fieldsJSON, layersJSON, provJSON string
		var pricesJSON sql.NullString

		err := rows.Scan(&rec.NaturalKey, &rec.Surrogate, &rec.PageIndex, &rec.Confidence,
			&fieldsJSON, &pricesJSON, &layersJSON, &provJSON)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}

		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fields")
		}
		if pricesJSON.Valid {
			if err := json.Unmarshal([]byte(pricesJSON.String), &rec.Prices); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal prices")
			}
		}
		if err := json.Unmarshal([]byte(layersJSON), &rec.Layers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal layers")
		}
		if err := json.Unmarshal([]byte(provJSON), &rec.Provenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: get records iterate")
}

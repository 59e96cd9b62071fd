package report

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func init() {
	factory.RegisterWriter("sqlite", func(def config.WriterDef, _ *source.Store) (model.Writer, error) {
		w, err := NewSQLiteWriter(def.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    timestamp INTEGER,
    lookup_source TEXT,
    flow_source TEXT,
    records_parsed INTEGER,
    lines_skipped INTEGER,
    untagged INTEGER
);
CREATE TABLE IF NOT EXISTS tag_counts (
    run_id TEXT,
    tag TEXT,
    count INTEGER
);
CREATE TABLE IF NOT EXISTS port_protocol_counts (
    run_id TEXT,
    dst_port INTEGER,
    protocol TEXT,
    count INTEGER
);
`

// SQLiteWriter keeps a history of runs in a local SQLite database.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database at path.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// Name returns the writer type.
func (w *SQLiteWriter) Name() string {
	return "sqlite"
}

// Write stores the run and both count tables in a single transaction.
func (w *SQLiteWriter) Write(ctx context.Context, r *model.Report) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO runs (
            run_id, timestamp, lookup_source, flow_source,
            records_parsed, lines_skipped, untagged
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		r.RunID, r.GeneratedAt.Unix(), r.LookupSource, r.FlowSource,
		r.Stats.RecordsParsed, r.Stats.LinesSkipped, int64(r.Stats.Untagged),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	tagStmt, err := tx.PrepareContext(ctx, `INSERT INTO tag_counts (run_id, tag, count) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer tagStmt.Close()
	for _, row := range SortedTags(r.TagCounts) {
		if _, err := tagStmt.ExecContext(ctx, r.RunID, row.Tag, int64(row.Count)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert tag count: %w", err)
		}
	}

	pairStmt, err := tx.PrepareContext(ctx, `INSERT INTO port_protocol_counts (run_id, dst_port, protocol, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer pairStmt.Close()
	for _, row := range SortedPortProtocols(r.PortProtocolCounts) {
		if _, err := pairStmt.ExecContext(ctx, r.RunID, int(row.DstPort), row.Protocol, int64(row.Count)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert port/protocol count: %w", err)
		}
	}

	return tx.Commit()
}

// TagCounts reads back the tag counts stored for a run.
func (w *SQLiteWriter) TagCounts(ctx context.Context, runID string) (model.TagCounts, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT tag, count FROM tag_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(model.TagCounts)
	for rows.Next() {
		var tag string
		var n int64
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] = uint64(n)
	}
	return out, rows.Err()
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

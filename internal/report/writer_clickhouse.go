package report

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/source"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"k8s.io/klog/v2"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, _ *source.Store) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
}

const createTagCountsTableStatement = `
CREATE TABLE IF NOT EXISTS tag_counts (
    RunID       String,
    Timestamp   DateTime,
    Tag         String,
    Count       UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Tag);
`

const createPortProtocolCountsTableStatement = `
CREATE TABLE IF NOT EXISTS port_protocol_counts (
    RunID       String,
    Timestamp   DateTime,
    DstPort     UInt16,
    Protocol    LowCardinality(String),
    Count       UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, DstPort, Protocol);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter creates a new ClickHouse writer and ensures its tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (model.Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createTagCountsTableStatement, createPortProtocolCountsTableStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	klog.Info("Successfully connected to ClickHouse and ensured report tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: false,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write inserts both count tables of the report.
func (w *ClickHouseWriter) Write(ctx context.Context, r *model.Report) error {
	tagRows := tagCountRows(r)
	if len(tagRows) > 0 {
		if err := w.insert(ctx, "INSERT INTO tag_counts", tagRows); err != nil {
			return err
		}
	}
	pairRows := portProtocolRows(r)
	if len(pairRows) > 0 {
		if err := w.insert(ctx, "INSERT INTO port_protocol_counts", pairRows); err != nil {
			return err
		}
	}

	klog.Infof("Wrote %d tag rows and %d port/protocol rows to ClickHouse for run '%s'", len(tagRows), len(pairRows), r.RunID)
	return nil
}

func (w *ClickHouseWriter) insert(ctx context.Context, query string, rows [][]any) error {
	batch, err := w.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

func tagCountRows(r *model.Report) [][]any {
	rows := make([][]any, 0, len(r.TagCounts))
	for _, row := range SortedTags(r.TagCounts) {
		rows = append(rows, []any{r.RunID, r.GeneratedAt, row.Tag, row.Count})
	}
	return rows
}

func portProtocolRows(r *model.Report) [][]any {
	rows := make([][]any, 0, len(r.PortProtocolCounts))
	for _, row := range SortedPortProtocols(r.PortProtocolCounts) {
		rows = append(rows, []any{r.RunID, r.GeneratedAt, row.DstPort, row.Protocol, row.Count})
	}
	return rows
}

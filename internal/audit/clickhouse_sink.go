package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds connection settings for the ClickHouse audit sink,
// mirroring storage.ClickHouseConfig's field shape.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string // defaults to "audit_events"
}

// ClickHouseSink inserts one row per Record into an append-optimized
// ClickHouse table. Grounded directly on internal/storage/clickhouse.go's
// connection-open pattern; ClickHouse's MergeTree engine is a natural home
// for an audit stream that is written once and never updated.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

// OpenClickHouseSink opens a ClickHouse connection and ensures the audit
// table exists.
func OpenClickHouseSink(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSink, error) {
	table := cfg.Table
	if table == "" {
		table = "audit_events"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("audit: ping clickhouse: %w", err)
	}

	sink := &ClickHouseSink{conn: conn, table: table}
	if err := sink.createSchema(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *ClickHouseSink) createSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			trace_id String,
			category String,
			timestamp DateTime64(3),
			fingerprint String,
			context String,
			events String
		) ENGINE = MergeTree()
		ORDER BY (timestamp, trace_id)
	`, s.table)
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("audit: create clickhouse schema: %w", err)
	}
	return nil
}

// Write inserts a single row. Each insert is a single statement, satisfying
// the "atomic per record" requirement without needing a batch/transaction.
func (s *ClickHouseSink) Write(ctx context.Context, rec Record) error {
	if rec.Fingerprint == "" {
		rec.Fingerprint = Fingerprint(rec)
	}
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("audit: marshal context: %w", err)
	}
	eventsJSON, err := json.Marshal(rec.Events)
	if err != nil {
		return fmt.Errorf("audit: marshal events: %w", err)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (trace_id, category, timestamp, fingerprint, context, events) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	ts := time.UnixMilli(rec.Timestamp)
	if err := s.conn.Exec(ctx, stmt, rec.TraceID, string(rec.Category), ts, rec.Fingerprint, string(ctxJSON), string(eventsJSON)); err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

// Close closes the underlying ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

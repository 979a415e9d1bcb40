package clickhouse

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/loykin/prokill/internal/history"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid ClickHouse table name %q", table)
	}
	return nil
}

// Options are the connection settings of the native sink.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// Sink sends events to ClickHouse using the official ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects over the native protocol to addr with default credentials.
func New(addr, table string) (*Sink, error) {
	return Open(Options{Addr: addr, Table: table})
}

// Open connects, pings and creates the events table if it is missing.
func Open(o Options) (*Sink, error) {
	if o.Table == "" {
		o.Table = "kill_history"
	}
	if err := validTable(o.Table); err != nil {
		return nil, err
	}
	if o.Database == "" {
		o.Database = "default"
	}
	if o.Username == "" {
		o.Username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{o.Addr},
		Auth: clickhouse.Auth{
			Database: o.Database,
			Username: o.Username,
			Password: o.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: o.Table}
	if err := s.ensureTable(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureTable(ctx context.Context) error {
	err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			type LowCardinality(String),
			occurred_at DateTime64(6),
			pid UInt32,
			name String,
			outcome LowCardinality(String),
			error Nullable(String)
		) ENGINE = MergeTree()
		ORDER BY (occurred_at, pid)`)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse table %s: %w", s.table, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, pid, name, outcome, error) VALUES (?, ?, ?, ?, ?, ?)`, s.table)

	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		e.PID,
		e.Name,
		e.Outcome,
		errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx, fmt.Sprintf(
		`SELECT type, occurred_at, pid, name, outcome, ifNull(error, '') FROM %s ORDER BY occurred_at DESC LIMIT %d`,
		s.table, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query ClickHouse history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []history.Event
	for rows.Next() {
		var (
			e   history.Event
			typ string
		)
		if err := rows.Scan(&typ, &e.OccurredAt, &e.PID, &e.Name, &e.Outcome, &e.Error); err != nil {
			return nil, err
		}
		e.Type = history.EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

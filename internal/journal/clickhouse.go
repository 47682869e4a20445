package journal

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseSink sends events to ClickHouse over the native protocol.
type ClickHouseSink struct {
	conn  driver.Conn
	table string
}

func NewClickHouseSink(addr, database, table string) (*ClickHouseSink, error) {
	if database == "" {
		database = "default"
	}
	if table == "" {
		table = "feed_events"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{Database: database, Username: "default"},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	s := &ClickHouseSink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *ClickHouseSink) ensureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		occurred_at DateTime64(3, 'UTC'),
		event String,
		feed Int32,
		name String,
		reason String,
		pid Int32,
		detail String
	) ENGINE = MergeTree ORDER BY (name, occurred_at)`, s.table)
	return s.conn.Exec(ctx, q)
}

func (s *ClickHouseSink) Record(ctx context.Context, e Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (occurred_at, event, feed, name, reason, pid, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.conn.Exec(ctx, q, e.OccurredAt.UTC(), e.Type, int32(e.Feed), e.Name, e.Reason, int32(e.PID), e.Detail); err != nil {
		return fmt.Errorf("insert event into clickhouse: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kimhsiao/memostream/internal/logging"
)

const (
	recordsTable       = "memostream_records"
	defaultChannel     = "memostream_record_inserted"
	operationTimeout   = 5 * time.Second
	listenerMinBackoff = 2 * time.Second
	listenerMaxBackoff = 30 * time.Second
	listenerPingEvery  = 90 * time.Second
)

// PostgresConnector implements Connector against a PostgreSQL table, using
// LISTEN/NOTIFY for the push channel.
type PostgresConnector struct {
	dsn     string
	channel string
	db      *sql.DB
}

// NewPostgres opens a connector for dsn. An empty channel selects the
// default NOTIFY channel name.
func NewPostgres(dsn, channel string) (*PostgresConnector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}
	if channel == "" {
		channel = defaultChannel
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	return &PostgresConnector{dsn: dsn, channel: channel, db: db}, nil
}

// EnsureSchema creates the records table and the insert-notification
// trigger if they do not exist.
func (c *PostgresConnector) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	table := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, recordsTable)
	if _, err := c.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	fn := fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION %s_notify() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('%s', row_to_json(NEW)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`, recordsTable, c.channel)
	if _, err := c.db.ExecContext(ctx, fn); err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	trigger := fmt.Sprintf(`
		DO $$ BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_trigger WHERE tgname = '%s_insert_notify'
			) THEN
				CREATE TRIGGER %s_insert_notify
					AFTER INSERT ON %s
					FOR EACH ROW EXECUTE FUNCTION %s_notify();
			END IF;
		END $$`, recordsTable, recordsTable, recordsTable, recordsTable)
	if _, err := c.db.ExecContext(ctx, trigger); err != nil {
		return fmt.Errorf("failed to create insert trigger: %w", err)
	}

	return nil
}

// Insert submits rows as a single multi-row INSERT and returns the inserted
// rows with their server-assigned identifiers.
func (c *PostgresConnector) Insert(ctx context.Context, rows []NewRecord) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	query, args := buildInsertQuery(rows)

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	result, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return scanRows(result)
}

// SelectAll returns every row newest first.
func (c *PostgresConnector) SelectAll(ctx context.Context) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT id, content, created_at FROM %s ORDER BY created_at DESC", recordsTable)
	result, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return scanRows(result)
}

// buildInsertQuery renders a multi-row insert with RETURNING.
func buildInsertQuery(rows []NewRecord) (string, []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (content, created_at) VALUES ", recordsTable)

	args := make([]interface{}, 0, len(rows)*2)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d)", i*2+1, i*2+2)
		args = append(args, r.Content, r.CreatedAt)
	}
	sb.WriteString(" RETURNING id, content, created_at")

	return sb.String(), args
}

func scanRows(result *sql.Rows) ([]Row, error) {
	var out []Row
	for result.Next() {
		var row Row
		if err := result.Scan(&row.ID, &row.Content, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, result.Err()
}

type pgSubscription struct {
	listener *pq.Listener
	done     chan struct{}
}

func (s *pgSubscription) Close() error {
	close(s.done)
	return s.listener.Close()
}

// Subscribe listens on the connector's NOTIFY channel and delivers each
// inserted row to fn. Notifications carry the row as JSON.
func (c *PostgresConnector) Subscribe(ctx context.Context, fn func(Row)) (Subscription, error) {
	listener := pq.NewListener(c.dsn, listenerMinBackoff, listenerMaxBackoff,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logging.Error("postgres listener event", err,
					map[string]interface{}{"event": int(event)})
			}
		})

	if err := listener.Listen(c.channel); err != nil {
		listener.Close()
		return nil, err
	}

	sub := &pgSubscription{listener: listener, done: make(chan struct{})}

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					// Reconnect signal; the listener re-establishes LISTEN itself.
					continue
				}
				var row Row
				if err := json.Unmarshal([]byte(n.Extra), &row); err != nil {
					logging.Error("failed to decode notify payload", err,
						map[string]interface{}{"channel": c.channel})
					continue
				}
				fn(row)
			case <-time.After(listenerPingEvery):
				go listener.Ping()
			}
		}
	}()

	return sub, nil
}

// Close releases the underlying connection pool.
func (c *PostgresConnector) Close() error {
	return c.db.Close()
}

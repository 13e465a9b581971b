package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "docstore_events"

// PostgresStore keeps every collection in one JSONB table and broadcasts
// changes over LISTEN/NOTIFY in the writing transaction, so subscribers
// only ever see committed documents.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Init creates the backing table. Safe to call on every startup.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id         text NOT NULL,
			data       jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var data json.RawMessage
	err := s.db.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, doc any) (string, error) {
	m, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	m["id"] = id
	m["createdAt"] = now
	m["updatedAt"] = now

	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, data); err != nil {
		return "", err
	}
	if err := notifyChange(ctx, tx, Event{Type: EventCreated, Collection: collection, ID: id, Doc: data}); err != nil {
		return "", err
	}
	return id, tx.Commit(ctx)
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	normalized, err := encodeDoc(patch)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode stored document %s/%s: %w", collection, id, err)
	}
	for k, v := range normalized {
		doc[k] = v
	}
	doc["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET data=$3, updated_at=now() WHERE collection=$1 AND id=$2`,
		collection, id, merged); err != nil {
		return err
	}
	if err := notifyChange(ctx, tx, Event{Type: EventUpdated, Collection: collection, ID: id, Doc: merged}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2 RETURNING data`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := notifyChange(ctx, tx, Event{Type: EventDeleted, Collection: collection, ID: id, Doc: data}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	sql, args, err := buildQuerySQL(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var data json.RawMessage
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		docs = append(docs, data)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection string, where []Where, fn func(Event)) (CancelFunc, error) {
	subCtx, cancel := context.WithCancel(ctx)

	conn, err := s.db.Acquire(subCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, err
	}

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					log.Printf("docstore: subscription on %q stopped: %v", collection, err)
				}
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
				log.Printf("docstore: bad notification payload: %v", err)
				continue
			}
			if ev.Collection != collection {
				continue
			}
			var doc map[string]any
			if err := json.Unmarshal(ev.Doc, &doc); err != nil {
				continue
			}
			if matches(doc, where) {
				fn(ev)
			}
		}
	}()

	return CancelFunc(cancel), nil
}

func notifyChange(ctx context.Context, tx pgx.Tx, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
	return err
}

func buildQuerySQL(collection string, q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT data FROM documents WHERE collection=$1`)

	for _, w := range q.Where {
		if w.Op == OpIn {
			vals := inValues(w.Value)
			strs := make([]string, 0, len(vals))
			for _, v := range vals {
				s, ok := v.(string)
				if !ok {
					return "", nil, fmt.Errorf("docstore: %q predicate supports string values only", OpIn)
				}
				strs = append(strs, s)
			}
			args = append(args, strs)
			fmt.Fprintf(&sb, ` AND data->>'%s' = ANY($%d)`, w.Field, len(args))
			continue
		}

		op, ok := sqlOps[w.Op]
		if !ok {
			return "", nil, fmt.Errorf("docstore: unsupported predicate %q", w.Op)
		}
		switch v := w.Value.(type) {
		case time.Time:
			args = append(args, v)
			fmt.Fprintf(&sb, ` AND (data->>'%s')::timestamptz %s $%d`, w.Field, op, len(args))
		case bool:
			args = append(args, v)
			fmt.Fprintf(&sb, ` AND (data->>'%s')::boolean %s $%d`, w.Field, op, len(args))
		case string:
			args = append(args, v)
			fmt.Fprintf(&sb, ` AND data->>'%s' %s $%d`, w.Field, op, len(args))
		default:
			f, ok := toFloat(v)
			if !ok {
				return "", nil, fmt.Errorf("docstore: unsupported predicate value %T", w.Value)
			}
			args = append(args, f)
			fmt.Fprintf(&sb, ` AND (data->>'%s')::numeric %s $%d`, w.Field, op, len(args))
		}
	}

	if q.OrderBy != "" {
		if q.OrderAsTime {
			fmt.Fprintf(&sb, ` ORDER BY (data->>'%s')::timestamptz`, q.OrderBy)
		} else {
			fmt.Fprintf(&sb, ` ORDER BY data->>'%s'`, q.OrderBy)
		}
		if q.Desc {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, q.Limit)
	}
	return sb.String(), args, nil
}

var sqlOps = map[Op]string{
	OpEqual:          "=",
	OpNotEqual:       "<>",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
}

var _ Store = (*PostgresStore)(nil)

package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/jarvis-gateway/internal/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    parent_id TEXT,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    model TEXT,
    model_name TEXT,
    model_idx INTEGER,
    done INTEGER NOT NULL
);`

// SQLiteStore keeps the history in a SQLite database. Each Append runs in a
// single transaction. childrenIds are derived from parent_id links when the
// history is read.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.RWMutex
	createdAt time.Time
}

// OpenSQLite opens (or creates) the messages table at dsn. An empty dsn uses
// a private in-memory database that lives as long as the store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	logger.L.Info("sqlite history DB initialized", "dsn", dsn)
	return &SQLiteStore{db: db, createdAt: time.Now()}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, msgs ...Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	err = checkBatch(msgs, func(id string) (bool, error) {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id = ?;`, id).Scan(&n); err != nil {
			return false, fmt.Errorf("history: lookup %s: %w", id, err)
		}
		return n > 0, nil
	})
	if err != nil {
		return err
	}

	for _, m := range msgs {
		var parent sql.NullString
		if m.ParentID != "" {
			parent = sql.NullString{String: m.ParentID, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, parent_id, role, content, timestamp, model, model_name, model_idx, done) VALUES (?,?,?,?,?,?,?,?,?);`,
			m.ID, parent, string(m.Role), m.Content, m.Timestamp, m.Model, m.ModelName, m.ModelIdx, m.Done)
		if err != nil {
			return fmt.Errorf("history: insert %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) All(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, role, content, timestamp, model, model_name, model_idx, done FROM messages ORDER BY seq ASC;`)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	index := map[string]int{}
	for rows.Next() {
		var m Message
		var parent, model, modelName sql.NullString
		var modelIdx sql.NullInt64
		var role string
		var done bool
		if err := rows.Scan(&m.ID, &parent, &role, &m.Content, &m.Timestamp, &model, &modelName, &modelIdx, &done); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		m.ParentID = parent.String
		m.Role = Role(role)
		m.Model = model.String
		m.ModelName = modelName.String
		m.ModelIdx = int(modelIdx.Int64)
		m.Done = done
		m.ChildrenIDs = []string{}
		if i, ok := index[m.ParentID]; ok {
			out[i].ChildrenIDs = append(out[i].ChildrenIDs, m.ID)
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages;`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	s.mu.Lock()
	s.createdAt = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Package history holds the ordered conversation history.
//
// A Store is an append-only arena of messages keyed by id. Append commits a
// batch atomically, so a user turn and its assistant reply become visible
// together or not at all.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comigor/jarvis-gateway/internal/config"
)

var (
	// ErrUnknownParent means a message named a parent that is not in the store.
	ErrUnknownParent = errors.New("history: parent id not found")
	// ErrDuplicateID means a message id is already in use.
	ErrDuplicateID = errors.New("history: duplicate message id")
	// ErrEmptyID means a message was appended without an id.
	ErrEmptyID = errors.New("history: message id is empty")
)

// Store is the conversation history contract shared by all backends.
type Store interface {
	// Append commits msgs in order as one unit.
	Append(ctx context.Context, msgs ...Message) error
	// All returns a snapshot of the history in insertion order.
	All(ctx context.Context) ([]Message, error)
	// Clear drops every message and resets CreatedAt.
	Clear(ctx context.Context) error
	// CreatedAt reports when the current history began.
	CreatedAt() time.Time
	Close() error
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("history: unknown backend %q", cfg.Backend)
	}
}

// checkBatch enforces id uniqueness and the no-forward-reference rule for a
// batch about to be appended. exists reports whether an id is already stored.
func checkBatch(msgs []Message, exists func(id string) (bool, error)) error {
	staged := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			return ErrEmptyID
		}
		if _, dup := staged[m.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		found, err := exists(m.ID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		}
		if m.ParentID != "" {
			if _, ok := staged[m.ParentID]; !ok {
				found, err := exists(m.ParentID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: %s (child %s)", ErrUnknownParent, m.ParentID, m.ID)
				}
			}
		}
		staged[m.ID] = struct{}{}
	}
	return nil
}

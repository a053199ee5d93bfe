package store

import (
	"context"
	"time"

	"github.com/seantiz/cadence/internal/model"
)

// Store defines the persistence operations for playback sessions and their
// console history.
type Store interface {
	CreateSession(ctx context.Context, id string, startedAt time.Time) error
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error)
	InsertConsoleLine(ctx context.Context, seq int, line model.ConsoleLine) error
	GetConsoleLines(ctx context.Context, sessionID string) ([]model.StoredConsoleLine, error)
	Close() error
}

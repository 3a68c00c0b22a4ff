package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/pomo/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SessionFilter narrows session listings. From is inclusive and To exclusive;
// zero values leave that side open.
type SessionFilter struct {
	Type models.SessionType
	From time.Time
	To   time.Time
}

// Store defines the persistence interface for pomo.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, date string) ([]*models.Task, error)
	ListTasksByCompletion(ctx context.Context, date string, completed bool) ([]*models.Task, error)
	ListOverdueTasks(ctx context.Context, today string) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	DeleteTasksForDate(ctx context.Context, date string) (int64, error)
	CountTasks(ctx context.Context, date string) (total, completed int, err error)

	// Sessions
	RecordSession(ctx context.Context, s *models.CompletedSession) error
	GetSession(ctx context.Context, id string) (*models.CompletedSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.CompletedSession, error)
	DeleteSession(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

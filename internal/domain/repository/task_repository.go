package repository

import (
	"context"
	"errors"

	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
)

// ErrTaskNotFound is returned when a task ID does not exist in the store
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository is the process-wide registry of task records, keyed by
// task ID. Keys are unique per run, so concurrent writers never conflict
// on the same key, but implementations must still be safe for concurrent
// use from parallel goroutines.
type TaskRepository interface {
	// Save inserts or overwrites a record by ID
	Save(ctx context.Context, record *task.Record) error

	// Find retrieves a record by ID, or ErrTaskNotFound
	Find(ctx context.Context, id model.TaskID) (*task.Record, error)

	// List returns all records ordered by creation time
	List(ctx context.Context) ([]*task.Record, error)

	// Clear removes all records (test and maintenance use only; normal
	// operation never deletes)
	Clear(ctx context.Context) error
}

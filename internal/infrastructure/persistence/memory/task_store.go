// Package memory provides the in-process task repository used by default
// and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
	"github.com/opspilot/opspilot/internal/domain/repository"
)

// TaskStore is an in-memory TaskRepository. Records are stored by value
// snapshot so callers holding a record pointer cannot race readers.
type TaskStore struct {
	mu      sync.RWMutex
	records map[string]*task.Record
}

// NewTaskStore creates an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{records: make(map[string]*task.Record)}
}

// Save inserts or overwrites a record by ID.
func (s *TaskStore) Save(_ context.Context, record *task.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID.String()] = snapshot(record)
	return nil
}

// Find retrieves a record by ID.
func (s *TaskStore) Find(_ context.Context, id model.TaskID) (*task.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id.String()]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return snapshot(record), nil
}

// List returns all records ordered by creation time.
func (s *TaskStore) List(_ context.Context) ([]*task.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*task.Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, snapshot(record))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID.String() < records[j].ID.String()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Clear removes all records.
func (s *TaskStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*task.Record)
	return nil
}

// snapshot copies the mutable parts of a record. Result payloads are
// written once at merge time and safe to share.
func snapshot(record *task.Record) *task.Record {
	copied := *record
	if record.Errors != nil {
		copied.Errors = append([]string(nil), record.Errors...)
	}
	if record.CompletedAt != nil {
		completedAt := *record.CompletedAt
		copied.CompletedAt = &completedAt
	}
	return &copied
}

var _ repository.TaskRepository = (*TaskStore)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
	"github.com/opspilot/opspilot/internal/domain/repository"
)

// TaskRepositoryImpl implements repository.TaskRepository with SQLite.
// Structured columns (classification, plan, result, errors) are stored as
// JSON documents.
type TaskRepositoryImpl struct {
	db *sql.DB
}

// NewTaskRepository creates a SQLite-based task repository.
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

// Save inserts or overwrites a record by ID.
func (r *TaskRepositoryImpl) Save(ctx context.Context, record *task.Record) error {
	classificationJSON, err := marshalNullable(record.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification failed: %w", err)
	}
	planJSON, err := marshalNullable(record.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan failed: %w", err)
	}
	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}
	errorsJSON, err := json.Marshal(record.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors failed: %w", err)
	}

	query := `
		INSERT INTO tasks (id, request, status, classification, plan, result,
		                   errors, fatal_error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			request = excluded.request,
			status = excluded.status,
			classification = excluded.classification,
			plan = excluded.plan,
			result = excluded.result,
			errors = excluded.errors,
			fatal_error = excluded.fatal_error,
			completed_at = excluded.completed_at
	`
	var completedAt any
	if record.CompletedAt != nil {
		completedAt = record.CompletedAt.UTC()
	}
	_, err = r.db.ExecContext(ctx, query,
		record.ID.String(), record.Request, record.Status.String(),
		classificationJSON, planJSON, string(resultJSON), string(errorsJSON),
		record.FatalError, record.CreatedAt.UTC(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("save task failed: %w", err)
	}
	return nil
}

// Find retrieves a record by ID.
func (r *TaskRepositoryImpl) Find(ctx context.Context, id model.TaskID) (*task.Record, error) {
	query := `
		SELECT id, request, status, classification, plan, result,
		       errors, fatal_error, created_at, completed_at
		FROM tasks
		WHERE id = ?
	`
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, repository.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task failed: %w", err)
	}
	return record, nil
}

// List returns all records ordered by creation time.
func (r *TaskRepositoryImpl) List(ctx context.Context) ([]*task.Record, error) {
	query := `
		SELECT id, request, status, classification, plan, result,
		       errors, fatal_error, created_at, completed_at
		FROM tasks
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks failed: %w", err)
	}
	defer rows.Close()

	var records []*task.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task failed: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks failed: %w", err)
	}
	return records, nil
}

// Clear removes all records.
func (r *TaskRepositoryImpl) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clear tasks failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*task.Record, error) {
	var id, request, status, fatalError string
	var classificationJSON, planJSON, resultJSON, errorsJSON sql.NullString
	var createdAt time.Time
	var completedAt sql.NullTime
	err := row.Scan(&id, &request, &status, &classificationJSON, &planJSON,
		&resultJSON, &errorsJSON, &fatalError, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	taskID, err := model.NewTaskIDFromString(id)
	if err != nil {
		return nil, err
	}
	record := &task.Record{
		ID:         taskID,
		Request:    request,
		Status:     model.Status(status),
		FatalError: fatalError,
		CreatedAt:  createdAt,
	}
	if classificationJSON.Valid && classificationJSON.String != "" {
		var classification model.Classification
		if err := json.Unmarshal([]byte(classificationJSON.String), &classification); err != nil {
			return nil, fmt.Errorf("unmarshal classification failed: %w", err)
		}
		record.Classification = &classification
	}
	if planJSON.Valid && planJSON.String != "" {
		var plan task.Plan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan failed: %w", err)
		}
		record.Plan = &plan
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &record.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result failed: %w", err)
		}
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &record.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors failed: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	return record, nil
}

// marshalNullable renders a pointer as JSON, mapping nil to SQL NULL.
func marshalNullable(v any) (any, error) {
	switch value := v.(type) {
	case *model.Classification:
		if value == nil {
			return nil, nil
		}
	case *task.Plan:
		if value == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

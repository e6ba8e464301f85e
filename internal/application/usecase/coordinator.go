// Package usecase coordinates the task lifecycle: submission,
// classification, the approval gate and workflow execution.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opspilot/opspilot/internal/application/dto"
	"github.com/opspilot/opspilot/internal/application/port/output"
	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
	"github.com/opspilot/opspilot/internal/domain/repository"
)

// ErrNotAwaitingApproval is returned when an approval decision targets a
// task that is not parked at the approval gate.
var ErrNotAwaitingApproval = errors.New("task is not awaiting approval")

// LogFunc receives printf-style progress lines from the coordinator.
type LogFunc func(format string, args ...interface{})

type workflowRunner interface {
	Run(ctx context.Context, rec *task.Record) (model.Status, task.Result, []string)
}

type requestClassifier interface {
	Classify(text string) model.Classification
}

// Coordinator is the application entry point for task operations. Risky
// requests park at the approval gate with a plan; everything else runs
// immediately. Status transitions are serialized so concurrent approval
// decisions on the same task cannot both win.
type Coordinator struct {
	repo       repository.TaskRepository
	classifier requestClassifier
	runner     workflowRunner
	storage    output.StorageGateway
	clock      func() time.Time
	logf       LogFunc

	mu sync.Mutex
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithStorage enables artifact persistence for completed tasks.
func WithStorage(storage output.StorageGateway) Option {
	return func(c *Coordinator) { c.storage = storage }
}

// WithLogFunc sets the progress logger.
func WithLogFunc(logf LogFunc) Option {
	return func(c *Coordinator) { c.logf = logf }
}

// NewCoordinator wires a coordinator over its collaborators.
func NewCoordinator(repo repository.TaskRepository, classifier requestClassifier, runner workflowRunner, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:       repo,
		classifier: classifier,
		runner:     runner,
		clock:      time.Now,
		logf:       func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit registers a request, classifies it and either executes the
// workflow immediately or parks the task for approval.
func (c *Coordinator) Submit(ctx context.Context, request string) (*dto.TaskResponse, error) {
	return c.submit(ctx, request, false)
}

// SubmitRequiringApproval registers a request and always parks it for
// approval, regardless of how it classifies.
func (c *Coordinator) SubmitRequiringApproval(ctx context.Context, request string) (*dto.TaskResponse, error) {
	return c.submit(ctx, request, true)
}

func (c *Coordinator) submit(ctx context.Context, request string, forceApproval bool) (*dto.TaskResponse, error) {
	rec, err := task.New(request, c.clock())
	if err != nil {
		return nil, err
	}
	classification := c.classifier.Classify(request)
	rec.Classification = &classification
	c.logf("task %s: classified %s, capabilities %v, approval %v",
		rec.ID, classification.Category, classification.RequiredCapabilities, classification.RequiresApproval)

	if forceApproval || classification.RequiresApproval {
		if err := rec.AwaitApproval(task.NewPlan(classification)); err != nil {
			return nil, err
		}
		if err := c.repo.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
		return dto.FromRecord(rec, c.clock()), nil
	}

	if err := rec.Begin(); err != nil {
		return nil, err
	}
	if err := c.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	if err := c.execute(ctx, rec); err != nil {
		return nil, err
	}
	return dto.FromRecord(rec, c.clock()), nil
}

// Approve releases a waiting task into execution. Deciding an absent task
// returns ErrTaskNotFound; deciding one in any other status returns
// ErrNotAwaitingApproval.
func (c *Coordinator) Approve(ctx context.Context, id string) (*dto.TaskResponse, error) {
	rec, err := c.claimWaiting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.execute(ctx, rec); err != nil {
		return nil, err
	}
	return dto.FromRecord(rec, c.clock()), nil
}

// Reject terminates a waiting task without running any capability.
func (c *Coordinator) Reject(ctx context.Context, id string) (*dto.TaskResponse, error) {
	taskID, err := model.NewTaskIDFromString(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.repo.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusWaitingApproval {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNotAwaitingApproval, id, rec.Status)
	}
	if err := rec.Reject(c.clock()); err != nil {
		return nil, err
	}
	if err := c.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	c.logf("task %s: rejected", id)
	return dto.FromRecord(rec, c.clock()), nil
}

// Get returns the current state of a task.
func (c *Coordinator) Get(ctx context.Context, id string) (*dto.TaskResponse, error) {
	taskID, err := model.NewTaskIDFromString(id)
	if err != nil {
		return nil, err
	}
	rec, err := c.repo.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return dto.FromRecord(rec, c.clock()), nil
}

// List returns all tasks in creation order.
func (c *Coordinator) List(ctx context.Context) ([]*dto.TaskResponse, error) {
	records, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := c.clock()
	responses := make([]*dto.TaskResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, dto.FromRecord(rec, now))
	}
	return responses, nil
}

// claimWaiting atomically moves a waiting task into in_progress so only
// one approval decision can win.
func (c *Coordinator) claimWaiting(ctx context.Context, id string) (*task.Record, error) {
	taskID, err := model.NewTaskIDFromString(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := c.repo.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.StatusWaitingApproval {
		return nil, fmt.Errorf("%w: task %s is %s", ErrNotAwaitingApproval, id, rec.Status)
	}
	if err := rec.Begin(); err != nil {
		return nil, err
	}
	if err := c.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return rec, nil
}

// execute runs the workflow for an in_progress record and persists the
// outcome. Stage failures land in the record, not in the returned error.
func (c *Coordinator) execute(ctx context.Context, rec *task.Record) error {
	status, result, errs := c.runner.Run(ctx, rec)
	if err := rec.Finish(status, result, errs, c.clock()); err != nil {
		return err
	}
	if err := c.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if status == model.StatusCompleted {
		c.persistArtifacts(ctx, rec)
	}
	return nil
}

// persistArtifacts stores the workflow outputs of a completed task.
// Storage failures are logged and never fail the task.
func (c *Coordinator) persistArtifacts(ctx context.Context, rec *task.Record) {
	if c.storage == nil {
		return
	}
	save := func(artifactType output.ArtifactType, content []byte, contentType string) {
		if len(content) == 0 {
			return
		}
		meta, err := c.storage.SaveArtifact(ctx, output.SaveArtifactRequest{
			TaskID:      rec.ID.String(),
			Type:        artifactType,
			Label:       rec.Request,
			Content:     content,
			ContentType: contentType,
		})
		if err != nil {
			c.logf("task %s: artifact %s not stored: %v", rec.ID, artifactType, err)
			return
		}
		c.logf("task %s: stored %s artifact at %s", rec.ID, artifactType, meta.StoragePath)
	}

	if script := rec.Result.Script; script != nil {
		save(output.ArtifactTypeScript, []byte(script.Code), "text/x-powershell")
		save(output.ArtifactTypeRollback, []byte(script.RollbackScript), "text/x-powershell")
	}
	save(output.ArtifactTypeDraft, []byte(rec.Result.EmailDraft), "text/plain")
	if rec.Result.Diagnosis != nil {
		if data, err := json.Marshal(rec.Result.Diagnosis); err == nil {
			save(output.ArtifactTypeDiagnosis, data, "application/json")
		}
	}
}

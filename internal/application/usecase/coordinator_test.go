package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/application/classifier"
	"github.com/opspilot/opspilot/internal/application/port/output"
	"github.com/opspilot/opspilot/internal/domain/model"
	"github.com/opspilot/opspilot/internal/domain/model/task"
	"github.com/opspilot/opspilot/internal/domain/repository"
	"github.com/opspilot/opspilot/internal/infrastructure/persistence/memory"
)

// fixedRunner is a workflow runner returning a canned outcome.
type fixedRunner struct {
	status model.Status
	result task.Result
	errs   []string
	calls  int
	mu     sync.Mutex
}

func (r *fixedRunner) Run(_ context.Context, _ *task.Record) (model.Status, task.Result, []string) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.status, r.result, r.errs
}

// capturingStorage records artifact saves.
type capturingStorage struct {
	saved []output.SaveArtifactRequest
}

func (s *capturingStorage) SaveArtifact(_ context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	s.saved = append(s.saved, req)
	return &output.ArtifactMetadata{ID: "a-1", TaskID: req.TaskID, Type: req.Type, StoragePath: "mem://a-1"}, nil
}

func (s *capturingStorage) LoadArtifact(_ context.Context, _, _ string) (*output.Artifact, error) {
	return nil, repository.ErrTaskNotFound
}

func (s *capturingStorage) ListArtifacts(_ context.Context, _ string) ([]*output.ArtifactMetadata, error) {
	return nil, nil
}

func completedRunner() *fixedRunner {
	return &fixedRunner{
		status: model.StatusCompleted,
		result: task.Result{
			Diagnosis: &task.DiagnosisResult{RootCause: "noisy neighbor"},
			Commands:  []string{},
		},
	}
}

func newCoordinator(runner workflowRunner, opts ...Option) *Coordinator {
	return NewCoordinator(memory.NewTaskStore(), classifier.New(), runner, opts...)
}

func TestCoordinator_SimpleRequestExecutesImmediately(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)

	resp, err := c.Submit(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Nil(t, resp.Plan)
	assert.Equal(t, 1, runner.calls)
	assert.NotNil(t, resp.Commands)
}

func TestCoordinator_RiskyRequestWaitsForApproval(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)

	resp, err := c.Submit(context.Background(), "Restart the production database cluster")
	require.NoError(t, err)
	assert.Equal(t, "waiting_approval", resp.Status)
	require.NotNil(t, resp.Plan)
	assert.NotEmpty(t, resp.Plan.Steps)
	// Nothing runs until the gate opens.
	assert.Zero(t, runner.calls)
}

func TestCoordinator_SubmitRequiringApprovalGatesReadOnlyRequests(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)

	resp, err := c.SubmitRequiringApproval(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)
	assert.Equal(t, "waiting_approval", resp.Status)
	require.NotNil(t, resp.Plan)
	assert.Zero(t, runner.calls)

	approved, err := c.Approve(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", approved.Status)
	assert.Equal(t, 1, runner.calls)
}

func TestCoordinator_ApproveRunsWorkflow(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)

	submitted, err := c.Submit(context.Background(), "Restart the production database cluster")
	require.NoError(t, err)

	resp, err := c.Approve(context.Background(), submitted.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 1, runner.calls)

	got, err := c.Get(context.Background(), submitted.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
}

func TestCoordinator_RejectNeverRuns(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)

	submitted, err := c.Submit(context.Background(), "Delete the stale production volumes")
	require.NoError(t, err)

	resp, err := c.Reject(context.Background(), submitted.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Status)
	assert.Zero(t, runner.calls)

	// A rejected task can no longer be approved.
	_, err = c.Approve(context.Background(), submitted.TaskID)
	assert.ErrorIs(t, err, ErrNotAwaitingApproval)
}

func TestCoordinator_ApproveUnknownTask(t *testing.T) {
	c := newCoordinator(completedRunner())
	_, err := c.Approve(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestCoordinator_ApproveExecutingTaskConflicts(t *testing.T) {
	c := newCoordinator(completedRunner())
	submitted, err := c.Submit(context.Background(), "Restart the production database cluster")
	require.NoError(t, err)

	_, err = c.Approve(context.Background(), submitted.TaskID)
	require.NoError(t, err)
	_, err = c.Approve(context.Background(), submitted.TaskID)
	assert.ErrorIs(t, err, ErrNotAwaitingApproval)
}

func TestCoordinator_ConcurrentApprovalsSingleWinner(t *testing.T) {
	runner := completedRunner()
	c := newCoordinator(runner)
	submitted, err := c.Submit(context.Background(), "Restart the production database cluster")
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Approve(context.Background(), submitted.TaskID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrNotAwaitingApproval)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, runner.calls)
}

func TestCoordinator_EmptyRequestRejected(t *testing.T) {
	c := newCoordinator(completedRunner())
	_, err := c.Submit(context.Background(), "   ")
	assert.Error(t, err)
}

func TestCoordinator_FailedOutcomeRecorded(t *testing.T) {
	runner := &fixedRunner{
		status: model.StatusFailed,
		errs:   []string{"automation exhausted 3 attempts: last error: boom"},
	}
	c := newCoordinator(runner)

	resp, err := c.Submit(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "exhausted")
}

func TestCoordinator_PartialOutcomeStaysInProgress(t *testing.T) {
	runner := &fixedRunner{status: model.StatusInProgress}
	c := newCoordinator(runner)

	resp, err := c.Submit(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", resp.Status)
}

func TestCoordinator_ListInCreationOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	c := newCoordinator(completedRunner(), WithClock(clock))

	first, err := c.Submit(context.Background(), "Check service status")
	require.NoError(t, err)
	second, err := c.Submit(context.Background(), "Query the error rate")
	require.NoError(t, err)

	listed, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.TaskID, listed[0].TaskID)
	assert.Equal(t, second.TaskID, listed[1].TaskID)
}

func TestCoordinator_CompletedTaskPersistsArtifacts(t *testing.T) {
	storage := &capturingStorage{}
	runner := &fixedRunner{
		status: model.StatusCompleted,
		result: task.Result{
			Diagnosis: &task.DiagnosisResult{RootCause: "noisy neighbor"},
			Script: &task.ScriptResult{
				Code:           "az vm restart --name web01",
				RollbackScript: "az vm start --name web01",
			},
			EmailDraft: "All handled.",
		},
	}
	c := newCoordinator(runner, WithStorage(storage))

	_, err := c.Submit(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)

	types := map[output.ArtifactType]bool{}
	for _, req := range storage.saved {
		types[req.Type] = true
	}
	assert.True(t, types[output.ArtifactTypeScript])
	assert.True(t, types[output.ArtifactTypeRollback])
	assert.True(t, types[output.ArtifactTypeDraft])
	assert.True(t, types[output.ArtifactTypeDiagnosis])
}

func TestCoordinator_NoArtifactsForFailedTask(t *testing.T) {
	storage := &capturingStorage{}
	runner := &fixedRunner{
		status: model.StatusFailed,
		errs:   []string{"diagnose stage: completion service: down"},
	}
	c := newCoordinator(runner, WithStorage(storage))

	_, err := c.Submit(context.Background(), "Check the status of the payment service")
	require.NoError(t, err)
	assert.Empty(t, storage.saved)
}

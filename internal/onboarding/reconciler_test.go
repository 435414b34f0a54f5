package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedView(tenantID uuid.UUID, statuses ...StepStatus) *WorkflowView {
	workflowID := uuid.New()
	workflow := &Workflow{
		ID:         workflowID,
		TenantID:   tenantID,
		Status:     WorkflowStatusInProgress,
		TotalSteps: len(statuses),
	}
	steps := stepsWithStatuses(workflowID, statuses...)
	view := WithSummary(workflowID, steps)
	return &WorkflowView{
		Workflow:         workflow,
		Steps:            view,
		CurrentStepIndex: CurrentIndex(view),
	}
}

func stepEvent(tenantID uuid.UUID, step Step, status StepStatus) ChangeEvent {
	return ChangeEvent{
		Entity:     EntityStep,
		EntityID:   step.ID,
		TenantID:   tenantID,
		StepStatus: status,
		Timestamp:  time.Now().UTC(),
	}
}

func TestReconcilerAppliesForwardEvents(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusPending, StepStatusPending, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	first := seed.Steps[0]
	r.ApplyRemote(stepEvent(tenantID, first, StepStatusCompleted))

	local, ok := r.Step(first.ID)
	require.True(t, ok)
	assert.Equal(t, StepStatusCompleted, local.StepStatus)

	view := r.View()
	assert.Equal(t, 1, view.CurrentStepIndex, "the cursor advances with remote completion")
}

func TestReconcilerDropsStaleEvents(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusCompleted, StepStatusInProgress, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	// Reconnection replays deliver old events out of order.
	r.ApplyRemote(stepEvent(tenantID, seed.Steps[0], StepStatusInProgress))
	r.ApplyRemote(stepEvent(tenantID, seed.Steps[0], StepStatusPending))
	r.ApplyRemote(stepEvent(tenantID, seed.Steps[1], StepStatusPending))

	first, _ := r.Step(seed.Steps[0].ID)
	second, _ := r.Step(seed.Steps[1].ID)
	assert.Equal(t, StepStatusCompleted, first.StepStatus, "replays never regress local progress")
	assert.Equal(t, StepStatusInProgress, second.StepStatus)
}

func TestReconcilerIgnoresOtherTenants(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusPending, StepStatusPending, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	r.ApplyRemote(stepEvent(uuid.New(), seed.Steps[0], StepStatusCompleted))

	local, _ := r.Step(seed.Steps[0].ID)
	assert.Equal(t, StepStatusPending, local.StepStatus)
}

func TestReconcilerInterleavingsConverge(t *testing.T) {
	tenantID := uuid.New()
	statuses := []StepStatus{StepStatusPending, StepStatusPending, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending}

	seed := seedView(tenantID, statuses...)
	events := []ChangeEvent{
		stepEvent(tenantID, seed.Steps[0], StepStatusInProgress),
		stepEvent(tenantID, seed.Steps[0], StepStatusCompleted),
		stepEvent(tenantID, seed.Steps[1], StepStatusInProgress),
		stepEvent(tenantID, seed.Steps[1], StepStatusSkipped),
	}

	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 0, 3, 2},
		{2, 0, 3, 1},
	}
	for _, order := range orders {
		r := NewReconciler(tenantID, nil, seed, zap.NewNop())
		for _, i := range order {
			r.ApplyRemote(events[i])
		}

		first, _ := r.Step(seed.Steps[0].ID)
		second, _ := r.Step(seed.Steps[1].ID)
		assert.Equal(t, StepStatusCompleted, first.StepStatus, "order %v", order)
		assert.Equal(t, StepStatusSkipped, second.StepStatus, "order %v", order)
	}
}

func TestReconcilerQueuesEventsForDirtySteps(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusInProgress, StepStatusPending, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	editing := seed.Steps[0]
	r.MarkDirty(editing.ID)

	// A collaborator completes the same step while the form is open.
	r.ApplyRemote(stepEvent(tenantID, editing, StepStatusCompleted))
	local, _ := r.Step(editing.ID)
	assert.Equal(t, StepStatusInProgress, local.StepStatus, "dirty steps are shielded from remote merges")

	// The local save resolves; the queued remote event then merges.
	now := time.Now().UTC()
	saved := editing
	saved.StepStatus = StepStatusCompleted
	saved.CompletedAt = &now
	r.ResolveDirty(editing.ID, &saved)

	local, _ = r.Step(editing.ID)
	assert.Equal(t, StepStatusCompleted, local.StepStatus)
	assert.Equal(t, &now, local.CompletedAt)
}

func TestReconcilerResync(t *testing.T) {
	tenantID := uuid.New()
	repo := newMemRepository()
	svc := newTestService(repo, nil, nil)

	view, err := svc.GetWorkflow(context.Background(), tenantID)
	require.NoError(t, err)
	r := NewReconciler(tenantID, svc, view, zap.NewNop())

	// Progress happens server-side while the feed is down.
	_, err = svc.CompleteStep(context.Background(), tenantID, view.Steps[0].ID, JSONB{"done": true})
	require.NoError(t, err)
	_, err = svc.CompleteStep(context.Background(), tenantID, view.Steps[1].ID, JSONB{"done": true})
	require.NoError(t, err)

	require.NoError(t, r.Resync(context.Background()))

	first, _ := r.Step(view.Steps[0].ID)
	second, _ := r.Step(view.Steps[1].ID)
	assert.Equal(t, StepStatusCompleted, first.StepStatus)
	assert.Equal(t, StepStatusCompleted, second.StepStatus)
	assert.Equal(t, 2, r.View().CurrentStepIndex)
}

func TestReconcilerResyncSkipsDirtySteps(t *testing.T) {
	tenantID := uuid.New()
	repo := newMemRepository()
	svc := newTestService(repo, nil, nil)

	view, err := svc.GetWorkflow(context.Background(), tenantID)
	require.NoError(t, err)
	r := NewReconciler(tenantID, svc, view, zap.NewNop())

	editing := view.Steps[0]
	r.MarkDirty(editing.ID)
	_, err = svc.CompleteStep(context.Background(), tenantID, editing.ID, JSONB{"done": true})
	require.NoError(t, err)

	require.NoError(t, r.Resync(context.Background()))
	local, _ := r.Step(editing.ID)
	assert.Equal(t, StepStatusPending, local.StepStatus, "a resync must not clobber an open edit")
}

func TestReconcilerWorkflowCompletionIsOneWay(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusCompleted, StepStatusCompleted, StepStatusCompleted,
		StepStatusCompleted, StepStatusSkipped, StepStatusSkipped)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	r.ApplyRemote(ChangeEvent{
		Entity:    EntityWorkflow,
		EntityID:  seed.Workflow.ID,
		TenantID:  tenantID,
		Patch:     JSONB{"status": string(WorkflowStatusCompleted)},
		Timestamp: time.Now().UTC(),
	})
	assert.Equal(t, WorkflowStatusCompleted, r.View().Workflow.Status)

	// A stale replay carrying the old status is ignored.
	r.ApplyRemote(ChangeEvent{
		Entity:    EntityWorkflow,
		EntityID:  seed.Workflow.ID,
		TenantID:  tenantID,
		Patch:     JSONB{"status": string(WorkflowStatusInProgress)},
		Timestamp: time.Now().UTC(),
	})
	assert.Equal(t, WorkflowStatusCompleted, r.View().Workflow.Status)
}

func TestReconcilerViewAppendsSummary(t *testing.T) {
	tenantID := uuid.New()
	seed := seedView(tenantID, StepStatusPending, StepStatusPending, StepStatusPending,
		StepStatusPending, StepStatusPending, StepStatusPending)
	r := NewReconciler(tenantID, nil, seed, zap.NewNop())

	view := r.View()
	require.Len(t, view.Steps, 7)
	assert.True(t, view.Steps[6].Virtual())
	assert.Equal(t, 0, view.CurrentStepIndex)
}

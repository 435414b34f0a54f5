package onboarding

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memRepository is an in-memory Repository used by scenario tests. It
// applies the same monotonic-status guard as the Postgres implementation.
type memRepository struct {
	mu        sync.Mutex
	workflows map[uuid.UUID]*Workflow
	byTenant  map[uuid.UUID]uuid.UUID
	steps     map[uuid.UUID]*Step
}

func newMemRepository() *memRepository {
	return &memRepository{
		workflows: make(map[uuid.UUID]*Workflow),
		byTenant:  make(map[uuid.UUID]uuid.UUID),
		steps:     make(map[uuid.UUID]*Step),
	}
}

func (r *memRepository) GetWorkflowByTenant(_ context.Context, tenantID uuid.UUID) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workflowID, ok := r.byTenant[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	workflow := *r.workflows[workflowID]
	return &workflow, nil
}

func (r *memRepository) GetWorkflow(_ context.Context, workflowID uuid.UUID) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workflow, ok := r.workflows[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *workflow
	return &out, nil
}

func (r *memRepository) CreateWorkflow(_ context.Context, workflow *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *workflow
	r.workflows[workflow.ID] = &stored
	r.byTenant[workflow.TenantID] = workflow.ID
	return nil
}

func (r *memRepository) UpdateWorkflow(_ context.Context, workflowID uuid.UUID, patch WorkflowPatch) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workflow, ok := r.workflows[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	if workflow.Status == WorkflowStatusCompleted && patch.Status != nil && *patch.Status != WorkflowStatusCompleted {
		return nil, ErrConflict
	}
	if patch.Status != nil {
		workflow.Status = *patch.Status
	}
	if patch.ProgressPercentage != nil {
		workflow.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.CurrentStep != nil {
		workflow.CurrentStep = *patch.CurrentStep
	}
	if patch.TotalSteps != nil {
		workflow.TotalSteps = *patch.TotalSteps
	}
	if patch.CompletedAt != nil {
		workflow.CompletedAt = patch.CompletedAt
	}
	workflow.UpdatedAt = time.Now().UTC()
	out := *workflow
	return &out, nil
}

func (r *memRepository) GetSteps(_ context.Context, workflowID uuid.UUID) ([]Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := []Step{}
	for _, step := range r.steps {
		if step.WorkflowID == workflowID {
			steps = append(steps, *step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps, nil
}

func (r *memRepository) GetStep(_ context.Context, stepID uuid.UUID) (*Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[stepID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *step
	return &out, nil
}

func (r *memRepository) CreateSteps(_ context.Context, steps []Step) error {
	if err := checkContiguousOrder(steps); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, step := range steps {
		stored := step
		r.steps[step.ID] = &stored
	}
	return nil
}

func (r *memRepository) UpdateStep(_ context.Context, stepID uuid.UUID, patch StepPatch) (*Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[stepID]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return nil, fmt.Errorf("%w: unknown step status %q", ErrConflict, next)
		}
		if next.Rank() < step.StepStatus.Rank() {
			if !patch.Reopen || step.StepStatus != StepStatusCompleted || next != StepStatusInProgress {
				return nil, fmt.Errorf("%w: step status %q cannot regress to %q", ErrConflict, step.StepStatus, next)
			}
			step.CompletedAt = nil
		}
		step.StepStatus = next
	}
	if patch.StepData != nil {
		step.StepData = patch.StepData
	}
	if patch.StartedAt != nil {
		step.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		step.CompletedAt = patch.CompletedAt
	}
	step.UpdatedAt = time.Now().UTC()
	out := *step
	return &out, nil
}

// recordingBroadcaster captures change events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (b *recordingBroadcaster) Broadcast(event ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) Events() []ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChangeEvent, len(b.events))
	copy(out, b.events)
	return out
}

// okAppliers returns a registry that accepts every payload.
func okAppliers() *ApplierRegistry {
	registry := NewApplierRegistry()
	for _, def := range Registry() {
		_ = registry.Register(def.Kind, ApplierFunc(func(context.Context, uuid.UUID, JSONB) error {
			return nil
		}))
	}
	return registry
}

// newTestService wires a service against the in-memory repository with
// accept-all appliers and no auto-progress predicates.
func newTestService(repo Repository, predicates map[StepKind]AutoProgressPredicate, feed Broadcaster) *Service {
	logger := zap.NewNop()
	detector := NewAutoProgressDetector(repo, predicates, logger)
	return NewService(repo, okAppliers(), detector, feed, logger)
}

func findStep(steps []Step, kind StepKind) *Step {
	for i := range steps {
		if steps[i].StepName == kind {
			return &steps[i]
		}
	}
	return nil
}

package onboarding

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowLoader loads a tenant's full workflow view. *Service satisfies it.
type WorkflowLoader interface {
	GetWorkflow(ctx context.Context, tenantID uuid.UUID) (*WorkflowView, error)
}

// Reconciler merges remote change-feed events into one session's local view
// of the workflow. The feed is at-least-once with no ordering guarantee, so
// merging is monotonic by status rank: stale or replayed events that would
// regress a step are dropped, which makes concurrent updates commutative.
//
// Steps the local user is actively editing are protected by a dirty flag;
// remote updates for a dirty step are queued and merged only after the local
// edit resolves.
type Reconciler struct {
	tenantID uuid.UUID
	loader   WorkflowLoader
	logger   *zap.Logger

	mu       sync.Mutex
	workflow *Workflow
	steps    map[uuid.UUID]Step
	dirty    map[uuid.UUID]bool
	queued   map[uuid.UUID][]ChangeEvent
}

// NewReconciler creates a reconciler for one session. Seed is the view from
// the initial load; it may be nil, in which case Resync populates it.
func NewReconciler(tenantID uuid.UUID, loader WorkflowLoader, seed *WorkflowView, logger *zap.Logger) *Reconciler {
	r := &Reconciler{
		tenantID: tenantID,
		loader:   loader,
		logger:   logger,
		steps:    make(map[uuid.UUID]Step),
		dirty:    make(map[uuid.UUID]bool),
		queued:   make(map[uuid.UUID][]ChangeEvent),
	}
	if seed != nil {
		r.workflow = seed.Workflow
		for _, step := range seed.Steps {
			if !step.Virtual() {
				r.steps[step.ID] = step
			}
		}
	}
	return r
}

// ApplyRemote merges one feed event into the local view. Events for other
// tenants are ignored; events for dirty steps are queued.
func (r *Reconciler) ApplyRemote(event ChangeEvent) {
	if event.TenantID != r.tenantID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Entity {
	case EntityWorkflow:
		r.applyWorkflowLocked(event)
	case EntityStep:
		if r.dirty[event.EntityID] {
			r.queued[event.EntityID] = append(r.queued[event.EntityID], event)
			return
		}
		r.applyStepLocked(event)
	}
}

// MarkDirty flags a step as having an unsaved in-flight local edit. Called
// when the step's form mounts.
func (r *Reconciler) MarkDirty(stepID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty[stepID] = true
}

// ResolveDirty clears a step's dirty flag after the local edit resolved,
// installs the authoritative result when provided, and drains any remote
// events queued while the edit was in flight.
func (r *Reconciler) ResolveDirty(stepID uuid.UUID, result *Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.dirty, stepID)
	if result != nil {
		r.mergeStepLocked(*result)
	}
	for _, event := range r.queued[stepID] {
		r.applyStepLocked(event)
	}
	delete(r.queued, stepID)
}

// Resync replaces buffered events with a full reload after a feed
// disconnect, reconciling every step by the same monotonic rule since
// events may have been missed entirely.
func (r *Reconciler) Resync(ctx context.Context) error {
	view, err := r.loader.GetWorkflow(ctx, r.tenantID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Workflow status is monotonic too: a completed local view is never
	// regressed by a reload.
	if r.workflow == nil || r.workflow.Status != WorkflowStatusCompleted || view.Workflow.Status == WorkflowStatusCompleted {
		r.workflow = view.Workflow
	}

	for _, step := range view.Steps {
		if step.Virtual() {
			continue
		}
		if r.dirty[step.ID] {
			continue
		}
		r.mergeStepLocked(step)
	}
	return nil
}

// View returns a snapshot of the local state with the virtual Summary step
// appended and the current index derived, matching what a fresh load
// would render.
func (r *Reconciler) View() WorkflowView {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]Step, 0, len(r.steps))
	for _, step := range r.steps {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	if r.workflow != nil {
		steps = WithSummary(r.workflow.ID, steps)
	}
	return WorkflowView{
		Workflow:         r.workflow,
		Steps:            steps,
		CurrentStepIndex: CurrentIndex(steps),
	}
}

// Step returns the local copy of a step.
func (r *Reconciler) Step(stepID uuid.UUID) (Step, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[stepID]
	return step, ok
}

func (r *Reconciler) applyWorkflowLocked(event ChangeEvent) {
	if r.workflow == nil || r.workflow.ID != event.EntityID {
		return
	}
	// The only workflow transition is in_progress -> completed; anything
	// else on the feed is a stale replay.
	if status, ok := event.Patch["status"].(string); ok && WorkflowStatus(status) == WorkflowStatusCompleted {
		r.workflow.Status = WorkflowStatusCompleted
	}
}

func (r *Reconciler) applyStepLocked(event ChangeEvent) {
	local, ok := r.steps[event.EntityID]
	if !ok {
		return
	}
	if !event.StepStatus.Valid() {
		return
	}

	if event.StepStatus.Rank() < local.StepStatus.Rank() {
		// Stale event or reconnection replay; local progress is kept.
		r.logger.Debug("dropping stale step event",
			zap.String("step", string(local.StepName)),
			zap.String("local_status", string(local.StepStatus)),
			zap.String("remote_status", string(event.StepStatus)))
		return
	}

	local.StepStatus = event.StepStatus
	if data, ok := event.Patch["step_data"].(map[string]interface{}); ok {
		local.StepData = JSONB(data)
	}
	r.steps[event.EntityID] = local
}

// mergeStepLocked merges an authoritative step record (from a load or a
// completed local mutation) by the monotonic rule. completed_at is never
// cleared by reconciliation; only an explicit reopen does that.
func (r *Reconciler) mergeStepLocked(remote Step) {
	local, ok := r.steps[remote.ID]
	if !ok {
		r.steps[remote.ID] = remote
		return
	}
	if remote.StepStatus.Rank() < local.StepStatus.Rank() {
		return
	}
	if remote.CompletedAt == nil && local.CompletedAt != nil {
		remote.CompletedAt = local.CompletedAt
	}
	r.steps[remote.ID] = remote
}

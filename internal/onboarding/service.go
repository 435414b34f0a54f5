package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/pkg/workflows"
)

// WorkflowName is the display name for every tenant onboarding workflow.
const WorkflowName = "Tenant Onboarding"

// Service orchestrates the onboarding workflow: step completion, navigation,
// auto-progress and the completion gate. All operations take an explicit
// tenant ID; the service holds no per-session state.
type Service struct {
	repo        Repository
	appliers    *ApplierRegistry
	detector    *AutoProgressDetector
	feed        Broadcaster
	transitions *workflows.StateMachine
	logger      *zap.Logger
}

// NewService creates a new onboarding service.
func NewService(repo Repository, appliers *ApplierRegistry, detector *AutoProgressDetector, feed Broadcaster, logger *zap.Logger) *Service {
	if feed == nil {
		feed = NopBroadcaster{}
	}
	return &Service{
		repo:        repo,
		appliers:    appliers,
		detector:    detector,
		feed:        feed,
		transitions: workflows.NewStepStateMachine(),
		logger:      logger,
	}
}

// =====================================================
// Provisioning
// =====================================================

// EnsureWorkflow returns the tenant's workflow, provisioning it with one
// pending step per catalog entry when absent.
func (s *Service) EnsureWorkflow(ctx context.Context, tenantID uuid.UUID) (*Workflow, error) {
	workflow, err := s.repo.GetWorkflowByTenant(ctx, tenantID)
	if err == nil {
		return workflow, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	catalog := Registry()
	workflow = &Workflow{
		ID:           uuid.New(),
		TenantID:     tenantID,
		WorkflowName: WorkflowName,
		Status:       WorkflowStatusInProgress,
		CurrentStep:  1,
		TotalSteps:   len(catalog),
		Metadata:     JSONB{},
		StartedAt:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(catalog))
	for _, def := range catalog {
		steps = append(steps, Step{
			ID:         uuid.New(),
			WorkflowID: workflow.ID,
			StepOrder:  def.Order,
			StepName:   def.Kind,
			StepStatus: StepStatusPending,
			StepData:   JSONB{},
			IsRequired: def.IsRequired,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := s.repo.CreateSteps(ctx, steps); err != nil {
		return nil, err
	}

	s.logger.Info("onboarding workflow provisioned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("workflow_id", workflow.ID.String()),
		zap.Int("steps", len(steps)))
	return workflow, nil
}

// =====================================================
// Reads
// =====================================================

// GetWorkflow loads the tenant's workflow view, provisioning on first load.
// Auto-progress is re-evaluated on every load so steps satisfied through the
// settings pages show up completed without a wizard visit.
func (s *Service) GetWorkflow(ctx context.Context, tenantID uuid.UUID) (*WorkflowView, error) {
	workflow, err := s.EnsureWorkflow(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != WorkflowStatusCompleted {
		advanced, err := s.detector.Reevaluate(ctx, tenantID, workflow.ID, 0)
		if err != nil {
			return nil, err
		}
		if len(advanced) > 0 {
			for _, step := range advanced {
				s.broadcastStep(tenantID, step)
			}
			if workflow, err = s.recomputeProgress(ctx, workflow); err != nil {
				return nil, err
			}
		}
	}

	steps, err := s.repo.GetSteps(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	view := WithSummary(workflow.ID, steps)
	return &WorkflowView{
		Workflow:         workflow,
		Steps:            view,
		CurrentStepIndex: CurrentIndex(view),
	}, nil
}

// =====================================================
// Step Completion
// =====================================================

// CompleteStep validates a step's payload, dispatches the registered domain
// applier, and only then marks the step completed. A failed applier leaves
// the step in its prior status; the caller may retry. Completing the virtual
// Summary step finalizes the workflow instead.
func (s *Service) CompleteStep(ctx context.Context, tenantID, stepID uuid.UUID, data JSONB) (*Step, error) {
	workflow, err := s.repo.GetWorkflowByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if stepID == SummaryStepID(workflow.ID) {
		completed, err := s.FinalizeWorkflow(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		view := WithSummary(completed.ID, nil)
		summary := view[len(view)-1]
		summary.StepStatus = StepStatusCompleted
		summary.CompletedAt = completed.CompletedAt
		return &summary, nil
	}

	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step.WorkflowID != workflow.ID {
		return nil, ErrNotFound
	}
	if workflow.Status == WorkflowStatusCompleted {
		return nil, ErrWorkflowCompleted
	}

	if data == nil {
		data = JSONB{}
	}

	applier, err := s.appliers.Resolve(step.StepName)
	if err != nil {
		return nil, err
	}

	// Synchronous dispatch: the step is never marked done while its side
	// effect is in flight or failed.
	if err := applier.Apply(ctx, tenantID, data); err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}
		s.logger.Warn("domain applier failed",
			zap.String("step", string(step.StepName)),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return nil, &ApplierError{Kind: step.StepName, Err: err}
	}

	status := StepStatusCompleted
	now := time.Now().UTC()
	patch := StepPatch{
		Status:      &status,
		StepData:    data,
		CompletedAt: &now,
	}
	if step.StartedAt == nil {
		patch.StartedAt = &now
	}
	updated, err := s.repo.UpdateStep(ctx, stepID, patch)
	if err != nil {
		return nil, err
	}
	s.broadcastStep(tenantID, *updated)

	if _, err := s.recomputeProgress(ctx, workflow); err != nil {
		return nil, err
	}

	// Some appliers satisfy downstream predicates too (feature selection
	// can provision importable data), so re-check the steps after this one.
	advanced, err := s.detector.Reevaluate(ctx, tenantID, workflow.ID, updated.StepOrder)
	if err != nil {
		s.logger.Warn("auto-progress re-evaluation failed after step completion",
			zap.String("workflow_id", workflow.ID.String()), zap.Error(err))
	} else if len(advanced) > 0 {
		for _, auto := range advanced {
			s.broadcastStep(tenantID, auto)
		}
		if _, err := s.recomputeProgress(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// SkipStep marks an optional step skipped. Required steps cannot be skipped.
func (s *Service) SkipStep(ctx context.Context, tenantID, stepID uuid.UUID) (*Step, error) {
	workflow, step, err := s.tenantStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	if workflow.Status == WorkflowStatusCompleted {
		return nil, ErrWorkflowCompleted
	}
	if step.IsRequired {
		return nil, &ValidationError{Kind: step.StepName, Reason: "required steps cannot be skipped"}
	}
	if !s.transitions.CanTransition(string(step.StepStatus), string(StepStatusSkipped)) {
		return nil, &ValidationError{Kind: step.StepName, Reason: fmt.Sprintf("cannot skip a %s step", step.StepStatus)}
	}

	status := StepStatusSkipped
	updated, err := s.repo.UpdateStep(ctx, stepID, StepPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	s.broadcastStep(tenantID, *updated)

	if _, err := s.recomputeProgress(ctx, workflow); err != nil {
		return nil, err
	}
	return updated, nil
}

// ReopenStep moves a completed step back to in_progress for edit-in-place.
// Reopening never regresses to pending and is rejected once the workflow has
// been finalized.
func (s *Service) ReopenStep(ctx context.Context, tenantID, stepID uuid.UUID) (*Step, error) {
	workflow, step, err := s.tenantStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	if workflow.Status == WorkflowStatusCompleted {
		return nil, ErrWorkflowCompleted
	}
	if step.StepStatus != StepStatusCompleted ||
		!s.transitions.CanTransition(string(step.StepStatus), string(StepStatusInProgress)) {
		return nil, &ValidationError{Kind: step.StepName, Reason: "only completed steps can be reopened"}
	}

	status := StepStatusInProgress
	now := time.Now().UTC()
	updated, err := s.repo.UpdateStep(ctx, stepID, StepPatch{
		Status:    &status,
		StartedAt: &now,
		Reopen:    true,
	})
	if err != nil {
		return nil, err
	}
	s.broadcastStep(tenantID, *updated)

	if _, err := s.recomputeProgress(ctx, workflow); err != nil {
		return nil, err
	}
	return updated, nil
}

// =====================================================
// Navigation
// =====================================================

// NavigateTo resolves the step at the requested index, enforcing that users
// cannot jump ahead of the first incomplete step. Navigating onto a pending
// persisted step moves it to in_progress and stamps started_at.
func (s *Service) NavigateTo(ctx context.Context, tenantID uuid.UUID, index int) (*Step, error) {
	view, err := s.GetWorkflow(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !CanNavigateTo(view.Steps, index) {
		return nil, ErrNavigationBlocked
	}

	target := view.Steps[index]
	if target.Virtual() || target.StepStatus != StepStatusPending {
		return &target, nil
	}

	status := StepStatusInProgress
	now := time.Now().UTC()
	updated, err := s.repo.UpdateStep(ctx, target.ID, StepPatch{
		Status:    &status,
		StartedAt: &now,
	})
	if err != nil {
		// A concurrent completion may have advanced the step already;
		// the monotonic guard reports that as a conflict. Re-read.
		if errors.Is(err, ErrConflict) {
			return s.repo.GetStep(ctx, target.ID)
		}
		return nil, err
	}
	s.broadcastStep(tenantID, *updated)
	return updated, nil
}

// =====================================================
// Completion Gate
// =====================================================

// FinalizeWorkflow transitions the workflow to completed once every required
// step is terminal. This is the only operation that completes a workflow,
// and the transition is one-way.
func (s *Service) FinalizeWorkflow(ctx context.Context, tenantID uuid.UUID) (*Workflow, error) {
	workflow, err := s.repo.GetWorkflowByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if workflow.Status == WorkflowStatusCompleted {
		return workflow, nil
	}

	steps, err := s.repo.GetSteps(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	var incomplete []StepKind
	for _, step := range steps {
		if step.IsRequired && !step.StepStatus.Terminal() {
			incomplete = append(incomplete, step.StepName)
		}
	}
	if len(incomplete) > 0 {
		return nil, &IncompleteStepsError{Steps: incomplete}
	}

	status := WorkflowStatusCompleted
	now := time.Now().UTC()
	progress := 100
	current := len(steps) + 1
	updated, err := s.repo.UpdateWorkflow(ctx, workflow.ID, WorkflowPatch{
		Status:             &status,
		ProgressPercentage: &progress,
		CurrentStep:        &current,
		CompletedAt:        &now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("onboarding completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("workflow_id", workflow.ID.String()))
	s.feed.Broadcast(ChangeEvent{
		Entity:    EntityWorkflow,
		EntityID:  updated.ID,
		TenantID:  tenantID,
		Patch:     JSONB{"status": string(updated.Status)},
		Timestamp: now,
	})
	return updated, nil
}

// =====================================================
// Validation / Repair
// =====================================================

// ValidationReport describes the integrity of a tenant's onboarding data and
// whether anything was repaired in place.
type ValidationReport struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	WorkflowExists bool      `json:"workflow_exists"`
	StepsCount     int       `json:"steps_count"`
	Issues         []string  `json:"issues"`
	Repaired       bool      `json:"repaired"`
}

// ValidateWorkflow checks a tenant's onboarding data and repairs what it
// can: a missing workflow or step set is re-provisioned, a stale total_steps
// counter is corrected.
func (s *Service) ValidateWorkflow(ctx context.Context, tenantID uuid.UUID) (*ValidationReport, error) {
	report := &ValidationReport{TenantID: tenantID, Issues: []string{}}

	workflow, err := s.repo.GetWorkflowByTenant(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		report.Issues = append(report.Issues, "workflow missing, re-provisioned")
		if workflow, err = s.EnsureWorkflow(ctx, tenantID); err != nil {
			return nil, err
		}
		report.Repaired = true
	} else if err != nil {
		return nil, err
	}
	report.WorkflowExists = true

	steps, err := s.repo.GetSteps(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		report.Issues = append(report.Issues, "no steps found for workflow")
	}
	report.StepsCount = len(steps)

	if len(steps) > 0 && workflow.TotalSteps != len(steps) {
		report.Issues = append(report.Issues, fmt.Sprintf("total_steps %d does not match %d steps", workflow.TotalSteps, len(steps)))
		total := len(steps)
		if _, err := s.repo.UpdateWorkflow(ctx, workflow.ID, WorkflowPatch{TotalSteps: &total}); err != nil {
			return nil, err
		}
		report.Repaired = true
	}

	return report, nil
}

// =====================================================
// Internals
// =====================================================

func (s *Service) tenantStep(ctx context.Context, tenantID, stepID uuid.UUID) (*Workflow, *Step, error) {
	workflow, err := s.repo.GetWorkflowByTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	if step.WorkflowID != workflow.ID {
		return nil, nil, ErrNotFound
	}
	return workflow, step, nil
}

// recomputeProgress refreshes the workflow's derived progress fields from
// its step statuses.
func (s *Service) recomputeProgress(ctx context.Context, workflow *Workflow) (*Workflow, error) {
	steps, err := s.repo.GetSteps(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	progress := Progress(steps)
	current := CurrentIndex(steps) + 1
	return s.repo.UpdateWorkflow(ctx, workflow.ID, WorkflowPatch{
		ProgressPercentage: &progress,
		CurrentStep:        &current,
	})
}

func (s *Service) broadcastStep(tenantID uuid.UUID, step Step) {
	s.feed.Broadcast(ChangeEvent{
		Entity:     EntityStep,
		EntityID:   step.ID,
		TenantID:   tenantID,
		StepStatus: step.StepStatus,
		Patch: JSONB{
			"step_name":   string(step.StepName),
			"step_status": string(step.StepStatus),
		},
		Timestamp: time.Now().UTC(),
	})
}

package onboarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines the interface for workflow and step persistence. It is
// the single source of truth for onboarding status.
type Repository interface {
	// Workflows
	GetWorkflowByTenant(ctx context.Context, tenantID uuid.UUID) (*Workflow, error)
	GetWorkflow(ctx context.Context, workflowID uuid.UUID) (*Workflow, error)
	CreateWorkflow(ctx context.Context, workflow *Workflow) error
	UpdateWorkflow(ctx context.Context, workflowID uuid.UUID, patch WorkflowPatch) (*Workflow, error)

	// Steps
	GetSteps(ctx context.Context, workflowID uuid.UUID) ([]Step, error)
	GetStep(ctx context.Context, stepID uuid.UUID) (*Step, error)
	CreateSteps(ctx context.Context, steps []Step) error
	UpdateStep(ctx context.Context, stepID uuid.UUID, patch StepPatch) (*Step, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// =====================================================
// Workflows
// =====================================================

const workflowColumns = `id, tenant_id, workflow_name, status, progress_percentage,
	current_step, total_steps, metadata, started_at, completed_at, created_at, updated_at`

func (r *PostgresRepository) GetWorkflowByTenant(ctx context.Context, tenantID uuid.UUID) (*Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_workflows WHERE tenant_id = $1`, workflowColumns)

	var workflow Workflow
	if err := r.db.GetContext(ctx, &workflow, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow for tenant: %w", err)
	}
	return &workflow, nil
}

func (r *PostgresRepository) GetWorkflow(ctx context.Context, workflowID uuid.UUID) (*Workflow, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_workflows WHERE id = $1`, workflowColumns)

	var workflow Workflow
	if err := r.db.GetContext(ctx, &workflow, query, workflowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &workflow, nil
}

func (r *PostgresRepository) CreateWorkflow(ctx context.Context, workflow *Workflow) error {
	query := `
		INSERT INTO onboarding_workflows (
			id, tenant_id, workflow_name, status, progress_percentage,
			current_step, total_steps, metadata, started_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID, workflow.TenantID, workflow.WorkflowName, workflow.Status,
		workflow.ProgressPercentage, workflow.CurrentStep, workflow.TotalSteps,
		workflow.Metadata, workflow.StartedAt, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateWorkflow(ctx context.Context, workflowID uuid.UUID, patch WorkflowPatch) (*Workflow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current Workflow
	query := fmt.Sprintf(`SELECT %s FROM onboarding_workflows WHERE id = $1 FOR UPDATE`, workflowColumns)
	if err := tx.GetContext(ctx, &current, query, workflowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock workflow: %w", err)
	}

	// Completed workflows are terminal; only audit metadata may change,
	// and nothing in this patch shape touches it.
	if current.Status == WorkflowStatusCompleted && patch.Status != nil && *patch.Status != WorkflowStatusCompleted {
		return nil, ErrConflict
	}

	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.ProgressPercentage != nil {
		current.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.CurrentStep != nil {
		current.CurrentStep = *patch.CurrentStep
	}
	if patch.TotalSteps != nil {
		current.TotalSteps = *patch.TotalSteps
	}
	if patch.CompletedAt != nil {
		current.CompletedAt = patch.CompletedAt
	}
	current.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE onboarding_workflows
		SET status = $2, progress_percentage = $3, current_step = $4,
			total_steps = $5, completed_at = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		current.ID, current.Status, current.ProgressPercentage, current.CurrentStep,
		current.TotalSteps, current.CompletedAt, current.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit workflow update: %w", err)
	}
	return &current, nil
}

// =====================================================
// Steps
// =====================================================

const stepColumns = `id, workflow_id, step_order, step_name, step_status, step_data,
	is_required, started_at, completed_at, created_at, updated_at`

func (r *PostgresRepository) GetSteps(ctx context.Context, workflowID uuid.UUID) ([]Step, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_steps WHERE workflow_id = $1 ORDER BY step_order`, stepColumns)

	steps := []Step{}
	if err := r.db.SelectContext(ctx, &steps, query, workflowID); err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	return steps, nil
}

func (r *PostgresRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*Step, error) {
	query := fmt.Sprintf(`SELECT %s FROM onboarding_steps WHERE id = $1`, stepColumns)

	var step Step
	if err := r.db.GetContext(ctx, &step, query, stepID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return &step, nil
}

func (r *PostgresRepository) CreateSteps(ctx context.Context, steps []Step) error {
	if err := checkContiguousOrder(steps); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO onboarding_steps (
			id, workflow_id, step_order, step_name, step_status, step_data,
			is_required, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	for i := range steps {
		step := &steps[i]
		if _, err := tx.ExecContext(ctx, query,
			step.ID, step.WorkflowID, step.StepOrder, step.StepName, step.StepStatus,
			step.StepData, step.IsRequired, step.CreatedAt, step.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create step %q: %w", step.StepName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step creation: %w", err)
	}
	return nil
}

// UpdateStep applies a field-level patch. Status changes are monotonic:
// a patch that would lower the step's rank fails with ErrConflict unless it
// is the explicit reopen transition (completed -> in_progress). A step's
// completed_at is never cleared except on reopen.
func (r *PostgresRepository) UpdateStep(ctx context.Context, stepID uuid.UUID, patch StepPatch) (*Step, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current Step
	query := fmt.Sprintf(`SELECT %s FROM onboarding_steps WHERE id = $1 FOR UPDATE`, stepColumns)
	if err := tx.GetContext(ctx, &current, query, stepID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock step: %w", err)
	}

	if patch.Status != nil {
		next := *patch.Status
		if !next.Valid() {
			return nil, fmt.Errorf("%w: unknown step status %q", ErrConflict, next)
		}
		if next.Rank() < current.StepStatus.Rank() {
			if !patch.Reopen || current.StepStatus != StepStatusCompleted || next != StepStatusInProgress {
				return nil, fmt.Errorf("%w: step status %q cannot regress to %q", ErrConflict, current.StepStatus, next)
			}
			current.CompletedAt = nil
		}
		current.StepStatus = next
	}
	if patch.StepData != nil {
		current.StepData = patch.StepData
	}
	if patch.StartedAt != nil {
		current.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		current.CompletedAt = patch.CompletedAt
	}
	current.UpdatedAt = time.Now().UTC()

	update := `
		UPDATE onboarding_steps
		SET step_status = $2, step_data = $3, started_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		current.ID, current.StepStatus, current.StepData,
		current.StartedAt, current.CompletedAt, current.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit step update: %w", err)
	}
	return &current, nil
}

// checkContiguousOrder enforces the contiguous step_order invariant for a
// batch of steps belonging to one workflow.
func checkContiguousOrder(steps []Step) error {
	seen := make(map[int]bool, len(steps))
	for _, step := range steps {
		if step.StepOrder < 1 || step.StepOrder > len(steps) {
			return fmt.Errorf("%w: step order %d out of range 1..%d", ErrConflict, step.StepOrder, len(steps))
		}
		if seen[step.StepOrder] {
			return fmt.Errorf("%w: duplicate step order %d", ErrConflict, step.StepOrder)
		}
		seen[step.StepOrder] = true
	}
	return nil
}

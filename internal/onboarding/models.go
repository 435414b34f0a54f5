package onboarding

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =====================================================
// Enums and Constants
// =====================================================

// WorkflowStatus represents the overall status of an onboarding workflow
type WorkflowStatus string

const (
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
)

// StepStatus represents the status of a single onboarding step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Rank orders statuses for monotonic merging. Skipped ranks with completed:
// both are terminal, and neither may be regressed by a replayed event.
func (s StepStatus) Rank() int {
	switch s {
	case StepStatusPending:
		return 0
	case StepStatusInProgress:
		return 1
	case StepStatusCompleted, StepStatusSkipped:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the step needs no further user action.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// Valid reports whether the status is one of the known values.
func (s StepStatus) Valid() bool {
	return s.Rank() >= 0
}

// =====================================================
// JSON Types for JSONB columns
// =====================================================

// JSONB is a wrapper for JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// =====================================================
// Aggregate
// =====================================================

// Workflow is the per-tenant onboarding aggregate. Exactly one exists per
// tenant; it transitions in_progress -> completed exactly once.
type Workflow struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	TenantID           uuid.UUID      `json:"tenant_id" db:"tenant_id"`
	WorkflowName       string         `json:"workflow_name" db:"workflow_name"`
	Status             WorkflowStatus `json:"status" db:"status"`
	ProgressPercentage int            `json:"progress_percentage" db:"progress_percentage"`
	CurrentStep        int            `json:"current_step" db:"current_step"`
	TotalSteps         int            `json:"total_steps" db:"total_steps"`
	Metadata           JSONB          `json:"metadata,omitempty" db:"metadata"`
	StartedAt          *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// Step is one unit of the onboarding sequence. StepOrder values are
// contiguous starting at 1 within a workflow. The virtual Summary step is
// never persisted; it is appended by the navigation cursor.
type Step struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	WorkflowID  uuid.UUID  `json:"workflow_id" db:"workflow_id"`
	StepOrder   int        `json:"step_order" db:"step_order"`
	StepName    StepKind   `json:"step_name" db:"step_name"`
	StepStatus  StepStatus `json:"step_status" db:"step_status"`
	StepData    JSONB      `json:"step_data" db:"step_data"`
	IsRequired  bool       `json:"is_required" db:"is_required"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Virtual reports whether the step is the synthetic Summary step.
func (s *Step) Virtual() bool {
	return s.StepName == StepSummary
}

// =====================================================
// Mutations and Views
// =====================================================

// StepPatch is a field-level mutation for a step. Nil fields are untouched.
// Status changes that would lower the step's rank are rejected unless Reopen
// is set, which permits the single allowed backward transition
// (completed -> in_progress).
type StepPatch struct {
	Status      *StepStatus
	StepData    JSONB
	StartedAt   *time.Time
	CompletedAt *time.Time
	Reopen      bool
}

// WorkflowPatch is a field-level mutation for a workflow.
type WorkflowPatch struct {
	Status             *WorkflowStatus
	ProgressPercentage *int
	CurrentStep        *int
	TotalSteps         *int
	CompletedAt        *time.Time
}

// WorkflowView is what the UI renders: the workflow, its steps with the
// virtual Summary appended, and the derived current step index.
type WorkflowView struct {
	Workflow         *Workflow `json:"workflow"`
	Steps            []Step    `json:"steps"`
	CurrentStepIndex int       `json:"current_step_index"`
}

// =====================================================
// Change Feed
// =====================================================

// Change feed entity names.
const (
	EntityWorkflow = "workflow"
	EntityStep     = "step"
)

// ChangeEvent is one entry on the per-tenant change feed. Delivery is
// at-least-once with no ordering guarantee across reconnects, so consumers
// merge by status rank rather than arrival order.
type ChangeEvent struct {
	Entity     string     `json:"entity"`
	EntityID   uuid.UUID  `json:"entity_id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	StepStatus StepStatus `json:"step_status,omitempty"`
	Patch      JSONB      `json:"patch,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Broadcaster publishes change events to every connected session of a tenant.
type Broadcaster interface {
	Broadcast(event ChangeEvent)
}

// NopBroadcaster discards events. Used by the reconcile worker and tests.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(ChangeEvent) {}

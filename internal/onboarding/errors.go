package onboarding

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the workflow or step does not exist for the
	// tenant. Usually the workflow has not been provisioned yet.
	ErrNotFound = errors.New("onboarding: not found")

	// ErrConflict indicates a mutation would violate the contiguous-order
	// invariant or regress a step's status. Treated as a data-integrity
	// error: logged and aborted, never retried.
	ErrConflict = errors.New("onboarding: conflict")

	// ErrWorkflowCompleted indicates a mutation was attempted on a
	// finalized workflow.
	ErrWorkflowCompleted = errors.New("onboarding: workflow already completed")

	// ErrNavigationBlocked indicates a jump past the first incomplete step.
	ErrNavigationBlocked = errors.New("onboarding: cannot navigate past the first incomplete step")
)

// ValidationError reports that a submitted step payload failed step-local
// rules. No state mutation has occurred; the user is re-prompted.
type ValidationError struct {
	Kind   StepKind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload for step %q: %s", e.Kind, e.Reason)
}

// ApplierError reports that the domain-specific persistence for a step
// failed. The step keeps its prior status and the caller may retry.
type ApplierError struct {
	Kind StepKind
	Err  error
}

func (e *ApplierError) Error() string {
	return fmt.Sprintf("applier for step %q failed: %v", e.Kind, e.Err)
}

func (e *ApplierError) Unwrap() error { return e.Err }

// IncompleteStepsError blocks finalization, naming every required step that
// is not yet terminal.
type IncompleteStepsError struct {
	Steps []StepKind
}

func (e *IncompleteStepsError) Error() string {
	names := make([]string, len(e.Steps))
	for i, kind := range e.Steps {
		names[i] = string(kind)
	}
	return fmt.Sprintf("workflow has incomplete required steps: %s", strings.Join(names, ", "))
}

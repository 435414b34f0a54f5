package workflows

// StateMachine enforces onboarding status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStepStateMachine creates the state machine for step statuses. Progress
// is monotonic; the only backward edge is the explicit reopen-for-edit from
// completed to in_progress.
func NewStepStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"pending":     {"in_progress", "completed", "skipped"},
			"in_progress": {"completed", "skipped"},
			"completed":   {"in_progress"}, // Allow reopening for edit-in-place
			"skipped":     {},
		},
	}
}

// NewWorkflowStateMachine creates the state machine for workflow statuses.
// Completion is terminal.
func NewWorkflowStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"in_progress": {"completed"},
			"completed":   {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

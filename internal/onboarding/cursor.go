package onboarding

import "github.com/google/uuid"

// Navigation cursor: pure derivations over the persisted step list. The
// synthetic Summary step is appended here rather than stored, which keeps
// the repository's contiguous-order invariant untouched.

// WithSummary returns the step list with the virtual Summary step appended
// at order max+1, unless the persisted list already ends in a summary.
func WithSummary(workflowID uuid.UUID, steps []Step) []Step {
	if len(steps) > 0 && steps[len(steps)-1].StepName == StepSummary {
		out := make([]Step, len(steps))
		copy(out, steps)
		return out
	}

	maxOrder := 0
	for _, step := range steps {
		if step.StepOrder > maxOrder {
			maxOrder = step.StepOrder
		}
	}

	def := SummaryDefinition()
	summary := Step{
		ID:         SummaryStepID(workflowID),
		WorkflowID: workflowID,
		StepOrder:  maxOrder + 1,
		StepName:   StepSummary,
		StepStatus: StepStatusPending,
		IsRequired: def.IsRequired,
	}

	out := make([]Step, 0, len(steps)+1)
	out = append(out, steps...)
	return append(out, summary)
}

// CurrentIndex returns the index of the first step whose status is neither
// completed nor skipped. If every step is terminal the last step (Summary)
// is current, so the final review remains reachable.
func CurrentIndex(steps []Step) int {
	for i, step := range steps {
		if !step.StepStatus.Terminal() {
			return i
		}
	}
	if len(steps) == 0 {
		return 0
	}
	return len(steps) - 1
}

// CanNavigateTo reports whether direct navigation to index is allowed.
// Users may revisit completed steps but cannot jump ahead of the first
// incomplete step; only completion or auto-progress moves the frontier.
func CanNavigateTo(steps []Step, index int) bool {
	if index < 0 || index >= len(steps) {
		return false
	}
	return index <= CurrentIndex(steps)
}

// Progress returns the completed percentage over the persisted steps,
// excluding the virtual Summary step.
func Progress(steps []Step) int {
	total := 0
	completed := 0
	for _, step := range steps {
		if step.Virtual() {
			continue
		}
		total++
		if step.StepStatus == StepStatusCompleted {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return int(float64(completed)/float64(total)*100 + 0.5)
}

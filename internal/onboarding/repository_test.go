package onboarding

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckContiguousOrder(t *testing.T) {
	workflowID := uuid.New()
	build := func(orders ...int) []Step {
		steps := make([]Step, 0, len(orders))
		for _, order := range orders {
			steps = append(steps, Step{ID: uuid.New(), WorkflowID: workflowID, StepOrder: order})
		}
		return steps
	}

	assert.NoError(t, checkContiguousOrder(build(1, 2, 3, 4, 5, 6)))
	assert.NoError(t, checkContiguousOrder(build(3, 1, 2)), "input order does not matter")

	assert.ErrorIs(t, checkContiguousOrder(build(1, 2, 4)), ErrConflict, "gaps violate contiguity")
	assert.ErrorIs(t, checkContiguousOrder(build(0, 1, 2)), ErrConflict, "orders start at 1")
	assert.ErrorIs(t, checkContiguousOrder(build(1, 2, 2)), ErrConflict, "duplicates violate contiguity")
}

func TestStepStatusRank(t *testing.T) {
	assert.Equal(t, 0, StepStatusPending.Rank())
	assert.Equal(t, 1, StepStatusInProgress.Rank())
	assert.Equal(t, 2, StepStatusCompleted.Rank())
	assert.Equal(t, 2, StepStatusSkipped.Rank(), "skipped merges at the same rank as completed")
	assert.Equal(t, -1, StepStatus("archived").Rank())

	assert.True(t, StepStatusCompleted.Terminal())
	assert.True(t, StepStatusSkipped.Terminal())
	assert.False(t, StepStatusInProgress.Terminal())
	assert.False(t, StepStatus("archived").Valid())
}

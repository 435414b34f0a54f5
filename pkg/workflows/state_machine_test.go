package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepStateMachineTransitions(t *testing.T) {
	sm := NewStepStateMachine()

	assert.True(t, sm.CanTransition("pending", "in_progress"))
	assert.True(t, sm.CanTransition("pending", "completed"))
	assert.True(t, sm.CanTransition("pending", "skipped"))
	assert.True(t, sm.CanTransition("in_progress", "completed"))
	assert.True(t, sm.CanTransition("in_progress", "skipped"))
	assert.True(t, sm.CanTransition("completed", "in_progress"), "reopen for edit-in-place")

	assert.False(t, sm.CanTransition("completed", "pending"))
	assert.False(t, sm.CanTransition("in_progress", "pending"))
	assert.False(t, sm.CanTransition("skipped", "in_progress"), "skipped is terminal")
	assert.False(t, sm.CanTransition("skipped", "completed"))
	assert.False(t, sm.CanTransition("unknown", "completed"))
}

func TestWorkflowStateMachineCompletionIsTerminal(t *testing.T) {
	sm := NewWorkflowStateMachine()

	assert.True(t, sm.CanTransition("in_progress", "completed"))
	assert.False(t, sm.CanTransition("completed", "in_progress"))
	assert.Empty(t, sm.GetAllowedTransitions("completed"))
}

func TestGetAllowedTransitionsUnknownStatus(t *testing.T) {
	sm := NewStepStateMachine()
	assert.Empty(t, sm.GetAllowedTransitions("archived"))
}

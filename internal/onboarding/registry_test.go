package onboarding

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOrderIsContiguous(t *testing.T) {
	catalog := Registry()
	require.Len(t, catalog, 6)

	for i, def := range catalog {
		assert.Equal(t, i+1, def.Order, "catalog must be ordered 1..N without gaps")
	}
}

func TestRegistryRequiredSteps(t *testing.T) {
	required := map[StepKind]bool{}
	for _, def := range Registry() {
		required[def.Kind] = def.IsRequired
	}

	assert.True(t, required[StepBusinessVerification])
	assert.True(t, required[StepSubscriptionPlan])
	assert.True(t, required[StepBrandingConfiguration])
	assert.True(t, required[StepFeatureSelection])
	assert.False(t, required[StepDataImport])
	assert.False(t, required[StepTeamInvites])
}

func TestRegistryReturnsCopy(t *testing.T) {
	first := Registry()
	first[0].Order = 99

	assert.Equal(t, 1, Registry()[0].Order)
}

func TestDefinitionFor(t *testing.T) {
	def, ok := DefinitionFor(StepBrandingConfiguration)
	require.True(t, ok)
	assert.Equal(t, 3, def.Order)

	summary, ok := DefinitionFor(StepSummary)
	require.True(t, ok)
	assert.Equal(t, len(Registry())+1, summary.Order)

	_, ok = DefinitionFor(StepKind("Payments"))
	assert.False(t, ok)
}

func TestSummaryStepIDIsDeterministic(t *testing.T) {
	workflowID := uuid.New()

	assert.Equal(t, SummaryStepID(workflowID), SummaryStepID(workflowID))
	assert.NotEqual(t, SummaryStepID(workflowID), SummaryStepID(uuid.New()))
}

func TestApplierRegistryRejectsBadKinds(t *testing.T) {
	registry := NewApplierRegistry()
	noop := ApplierFunc(func(_ context.Context, _ uuid.UUID, _ JSONB) error { return nil })

	assert.Error(t, registry.Register(StepSummary, noop))
	assert.Error(t, registry.Register(StepKind("Payments"), noop))

	require.NoError(t, registry.Register(StepBrandingConfiguration, noop))
	assert.Error(t, registry.Register(StepBrandingConfiguration, noop), "rebinding a kind must fail")
}

func TestApplierRegistryComplete(t *testing.T) {
	registry := NewApplierRegistry()
	assert.Error(t, registry.Complete(), "empty registry cannot be complete")

	for _, def := range Registry() {
		require.NoError(t, registry.Register(def.Kind, ApplierFunc(func(_ context.Context, _ uuid.UUID, _ JSONB) error {
			return nil
		})))
	}
	assert.NoError(t, registry.Complete())
}

package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// togglePredicate is satisfied on demand and counts its probes.
type togglePredicate struct {
	satisfied bool
	snapshot  JSONB
	err       error
	probes    int
}

func (p *togglePredicate) Satisfied(context.Context, uuid.UUID) (bool, JSONB, error) {
	p.probes++
	return p.satisfied, p.snapshot, p.err
}

func TestReevaluateCompletesSatisfiedSteps(t *testing.T) {
	repo := newMemRepository()
	branding := &togglePredicate{
		satisfied: true,
		snapshot:  JSONB{"primary_color": "#2F6B3A"},
	}
	svc := newTestService(repo, map[StepKind]AutoProgressPredicate{
		StepBrandingConfiguration: branding,
	}, nil)
	tenantID := uuid.New()

	workflow, err := svc.EnsureWorkflow(context.Background(), tenantID)
	require.NoError(t, err)

	detector := NewAutoProgressDetector(repo, map[StepKind]AutoProgressPredicate{
		StepBrandingConfiguration: branding,
	}, zap.NewNop())
	advanced, err := detector.Reevaluate(context.Background(), tenantID, workflow.ID, 0)
	require.NoError(t, err)
	require.Len(t, advanced, 1)
	assert.Equal(t, StepBrandingConfiguration, advanced[0].StepName)
	assert.Equal(t, StepStatusCompleted, advanced[0].StepStatus)
	assert.Equal(t, "#2F6B3A", advanced[0].StepData["primary_color"])
	require.NotNil(t, advanced[0].CompletedAt)

	// No external state changed; a second sweep transitions nothing.
	again, err := detector.Reevaluate(context.Background(), tenantID, workflow.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 1, branding.probes, "terminal steps are not re-probed")
}

func TestReevaluateSkipsStepsAtOrBeforeAfterOrder(t *testing.T) {
	repo := newMemRepository()
	verification := &togglePredicate{satisfied: true, snapshot: JSONB{}}
	svc := newTestService(repo, nil, nil)
	tenantID := uuid.New()

	workflow, err := svc.EnsureWorkflow(context.Background(), tenantID)
	require.NoError(t, err)

	detector := NewAutoProgressDetector(repo, map[StepKind]AutoProgressPredicate{
		StepBusinessVerification: verification,
	}, zap.NewNop())
	advanced, err := detector.Reevaluate(context.Background(), tenantID, workflow.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, advanced)
	assert.Zero(t, verification.probes, "orders at or before the cutoff are not probed")
}

func TestReevaluateProbeFailureIsNonFatal(t *testing.T) {
	repo := newMemRepository()
	svc := newTestService(repo, nil, nil)
	tenantID := uuid.New()

	workflow, err := svc.EnsureWorkflow(context.Background(), tenantID)
	require.NoError(t, err)

	detector := NewAutoProgressDetector(repo, map[StepKind]AutoProgressPredicate{
		StepBusinessVerification: &togglePredicate{err: errors.New("registry unreachable")},
		StepSubscriptionPlan:     &togglePredicate{satisfied: true, snapshot: JSONB{"plan": "growth"}},
	}, zap.NewNop())

	advanced, err := detector.Reevaluate(context.Background(), tenantID, workflow.ID, 0)
	require.NoError(t, err, "a failing probe delays auto-progress, it does not abort the sweep")
	require.Len(t, advanced, 1)
	assert.Equal(t, StepSubscriptionPlan, advanced[0].StepName)
}

func TestGetWorkflowReevaluatesOnLoad(t *testing.T) {
	repo := newMemRepository()
	feed := &recordingBroadcaster{}
	features := &togglePredicate{satisfied: true, snapshot: JSONB{"enabled_features": []interface{}{"inventory"}}}
	svc := newTestService(repo, map[StepKind]AutoProgressPredicate{
		StepFeatureSelection: features,
	}, feed)
	tenantID := uuid.New()

	view, err := svc.GetWorkflow(context.Background(), tenantID)
	require.NoError(t, err)

	step := findStep(view.Steps, StepFeatureSelection)
	require.NotNil(t, step)
	assert.Equal(t, StepStatusCompleted, step.StepStatus,
		"external state satisfied before the first wizard visit shows up completed")

	workflow, err := repo.GetWorkflowByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 17, workflow.ProgressPercentage)

	events := feed.Events()
	require.NotEmpty(t, events, "auto-completed steps reach the change feed")
	assert.Equal(t, step.ID, events[0].EntityID)
}

func TestGetWorkflowSkipsReevaluationWhenCompleted(t *testing.T) {
	repo := newMemRepository()
	probe := &togglePredicate{satisfied: true, snapshot: JSONB{}}
	svc := newTestService(repo, map[StepKind]AutoProgressPredicate{
		StepDataImport: probe,
	}, nil)
	tenantID := uuid.New()

	completeRequiredSteps(t, svc, tenantID)
	_, err := svc.FinalizeWorkflow(context.Background(), tenantID)
	require.NoError(t, err)
	probes := probe.probes

	_, err = svc.GetWorkflow(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, probes, probe.probes, "finalized workflows are not swept")
}

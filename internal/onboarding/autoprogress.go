package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AutoProgressDetector marks steps completed when external domain state
// already satisfies their completion predicate. A tenant who configured
// branding through the settings pages never re-enters it in the wizard.
//
// Predicates are read-only, so re-evaluation runs on every workflow load,
// step completion, and realtime notification without a timer.
type AutoProgressDetector struct {
	repo       Repository
	predicates map[StepKind]AutoProgressPredicate
	logger     *zap.Logger
}

// NewAutoProgressDetector creates a detector. Kinds without a predicate are
// simply never auto-progressed.
func NewAutoProgressDetector(repo Repository, predicates map[StepKind]AutoProgressPredicate, logger *zap.Logger) *AutoProgressDetector {
	if predicates == nil {
		predicates = make(map[StepKind]AutoProgressPredicate)
	}
	return &AutoProgressDetector{
		repo:       repo,
		predicates: predicates,
		logger:     logger,
	}
}

// Reevaluate checks every non-terminal step at or after afterOrder and
// completes the ones whose predicate is satisfied, populating step_data from
// the predicate's snapshot. Pass afterOrder 0 to evaluate all steps.
// Returns the steps it transitioned; running it twice with no external state
// change transitions nothing the second time.
func (d *AutoProgressDetector) Reevaluate(ctx context.Context, tenantID, workflowID uuid.UUID, afterOrder int) ([]Step, error) {
	steps, err := d.repo.GetSteps(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var advanced []Step
	for _, step := range steps {
		if step.StepOrder <= afterOrder || step.StepStatus.Terminal() {
			continue
		}
		predicate, ok := d.predicates[step.StepName]
		if !ok {
			continue
		}

		satisfied, snapshot, err := predicate.Satisfied(ctx, tenantID)
		if err != nil {
			// A failing probe only delays auto-progress; the user can
			// still complete the step explicitly.
			d.logger.Warn("auto-progress predicate failed",
				zap.String("step", string(step.StepName)),
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		if !satisfied {
			continue
		}

		status := StepStatusCompleted
		now := time.Now().UTC()
		updated, err := d.repo.UpdateStep(ctx, step.ID, StepPatch{
			Status:      &status,
			StepData:    snapshot,
			CompletedAt: &now,
		})
		if err != nil {
			return advanced, err
		}

		d.logger.Info("step auto-completed from external state",
			zap.String("step", string(step.StepName)),
			zap.String("tenant_id", tenantID.String()))
		advanced = append(advanced, *updated)
	}

	return advanced, nil
}

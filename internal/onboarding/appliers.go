package onboarding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DomainApplier persists one step kind's payload into its proper domain
// table. Appliers must be idempotent under retry with the same payload; the
// engine dispatches them synchronously and only marks a step completed after
// the applier returns.
type DomainApplier interface {
	Apply(ctx context.Context, tenantID uuid.UUID, data JSONB) error
}

// ApplierFunc adapts a function to the DomainApplier interface.
type ApplierFunc func(ctx context.Context, tenantID uuid.UUID, data JSONB) error

func (f ApplierFunc) Apply(ctx context.Context, tenantID uuid.UUID, data JSONB) error {
	return f(ctx, tenantID, data)
}

// AutoProgressPredicate probes external domain state for one step kind.
// When satisfied, it returns a snapshot of that state so the summary view
// has something to display. Predicates are read-only and idempotent.
type AutoProgressPredicate interface {
	Satisfied(ctx context.Context, tenantID uuid.UUID) (bool, JSONB, error)
}

// PredicateFunc adapts a function to the AutoProgressPredicate interface.
type PredicateFunc func(ctx context.Context, tenantID uuid.UUID) (bool, JSONB, error)

func (f PredicateFunc) Satisfied(ctx context.Context, tenantID uuid.UUID) (bool, JSONB, error) {
	return f(ctx, tenantID)
}

// ApplierRegistry maps step kinds to their domain appliers. The mapping is
// fixed at construction time and covers only catalog kinds, so an
// unregistered kind is caught at wiring time, not at dispatch time.
type ApplierRegistry struct {
	appliers map[StepKind]DomainApplier
}

// NewApplierRegistry creates an empty registry.
func NewApplierRegistry() *ApplierRegistry {
	return &ApplierRegistry{appliers: make(map[StepKind]DomainApplier)}
}

// Register binds a kind to its applier. Registering an unknown or summary
// kind, or rebinding a kind, is a wiring bug and fails loudly.
func (r *ApplierRegistry) Register(kind StepKind, applier DomainApplier) error {
	if kind == StepSummary {
		return fmt.Errorf("the summary step has no domain applier")
	}
	if _, ok := DefinitionFor(kind); !ok {
		return fmt.Errorf("unknown step kind %q", kind)
	}
	if _, exists := r.appliers[kind]; exists {
		return fmt.Errorf("applier for step kind %q already registered", kind)
	}
	r.appliers[kind] = applier
	return nil
}

// Resolve returns the applier for a kind.
func (r *ApplierRegistry) Resolve(kind StepKind) (DomainApplier, error) {
	applier, ok := r.appliers[kind]
	if !ok {
		return nil, fmt.Errorf("no applier registered for step kind %q", kind)
	}
	return applier, nil
}

// Complete verifies every catalog kind has an applier. Called once at
// startup after wiring.
func (r *ApplierRegistry) Complete() error {
	for _, def := range Registry() {
		if _, ok := r.appliers[def.Kind]; !ok {
			return fmt.Errorf("no applier registered for step kind %q", def.Kind)
		}
	}
	return nil
}

package onboarding

import "github.com/google/uuid"

// StepKind is the closed set of onboarding step identities. Persisted rows
// reference kinds by value; the registry below is the only place that maps a
// kind to its position and requirements, so an unknown kind can never reach
// the completion handler.
type StepKind string

const (
	StepBusinessVerification  StepKind = "Business Verification"
	StepSubscriptionPlan      StepKind = "Subscription Plan"
	StepBrandingConfiguration StepKind = "Branding Configuration"
	StepFeatureSelection      StepKind = "Feature Selection"
	StepDataImport            StepKind = "Data Import"
	StepTeamInvites           StepKind = "Team Invites"

	// StepSummary is the synthetic terminal step. It is never persisted;
	// completing it finalizes the workflow instead of mutating a step row.
	StepSummary StepKind = "Summary"
)

// StepDefinition describes one entry in the step catalog.
type StepDefinition struct {
	Kind             StepKind `json:"kind"`
	Order            int      `json:"order"`
	IsRequired       bool     `json:"is_required"`
	Capability       string   `json:"capability"`
	Description      string   `json:"description"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// registry is the canonical catalog, in persisted order.
var registry = []StepDefinition{
	{
		Kind:             StepBusinessVerification,
		Order:            1,
		IsRequired:       true,
		Capability:       "tenant.verification",
		Description:      "Verify your business information and upload required documents",
		EstimatedMinutes: 15,
	},
	{
		Kind:             StepSubscriptionPlan,
		Order:            2,
		IsRequired:       true,
		Capability:       "tenant.billing",
		Description:      "Choose your subscription plan and billing preferences",
		EstimatedMinutes: 5,
	},
	{
		Kind:             StepBrandingConfiguration,
		Order:            3,
		IsRequired:       true,
		Capability:       "tenant.branding",
		Description:      "Configure your brand colors, logo, and visual identity",
		EstimatedMinutes: 10,
	},
	{
		Kind:             StepFeatureSelection,
		Order:            4,
		IsRequired:       true,
		Capability:       "tenant.features",
		Description:      "Select platform features and configure settings",
		EstimatedMinutes: 10,
	},
	{
		Kind:             StepDataImport,
		Order:            5,
		IsRequired:       false,
		Capability:       "tenant.data",
		Description:      "Import existing data and finalize setup",
		EstimatedMinutes: 20,
	},
	{
		Kind:             StepTeamInvites,
		Order:            6,
		IsRequired:       false,
		Capability:       "tenant.members",
		Description:      "Invite team members and set up user roles",
		EstimatedMinutes: 5,
	},
}

var summaryDefinition = StepDefinition{
	Kind:        StepSummary,
	Order:       len(registry) + 1,
	IsRequired:  true,
	Capability:  "tenant.onboarding",
	Description: "Review your setup and go live",
}

// Registry returns the persisted step catalog in order. The returned slice
// is a copy; callers may not mutate the catalog.
func Registry() []StepDefinition {
	out := make([]StepDefinition, len(registry))
	copy(out, registry)
	return out
}

// SummaryDefinition returns the catalog entry for the virtual Summary step.
func SummaryDefinition() StepDefinition {
	return summaryDefinition
}

// DefinitionFor resolves a step kind to its catalog entry.
func DefinitionFor(kind StepKind) (StepDefinition, bool) {
	if kind == StepSummary {
		return summaryDefinition, true
	}
	for _, def := range registry {
		if def.Kind == kind {
			return def, true
		}
	}
	return StepDefinition{}, false
}

// summaryNamespace seeds the deterministic Summary step ID derivation.
var summaryNamespace = uuid.MustParse("6e5a1c86-9d3f-4c57-8f2a-0b7143a9d1e4")

// SummaryStepID derives the virtual Summary step's identifier from its
// workflow. The ID is stable per workflow so clients can address the Summary
// step in completeStep calls even though no row exists for it.
func SummaryStepID(workflowID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(summaryNamespace, workflowID[:])
}

package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agritenant/tenant-portal/tenant-portal-backend/internal/onboarding"
)

// Appliers binds each onboarding step kind to its tenant-domain
// persistence and exposes the matching auto-progress predicates. All writes
// are upserts, so retrying an applier with the same payload is idempotent.
type Appliers struct {
	repo Repository
}

// NewAppliers creates the tenant domain appliers.
func NewAppliers(repo Repository) *Appliers {
	return &Appliers{repo: repo}
}

// Register wires every step kind into the applier registry.
func (a *Appliers) Register(registry *onboarding.ApplierRegistry) error {
	bindings := map[onboarding.StepKind]onboarding.DomainApplier{
		onboarding.StepBusinessVerification:  onboarding.ApplierFunc(a.applyVerification),
		onboarding.StepSubscriptionPlan:      onboarding.ApplierFunc(a.applySubscription),
		onboarding.StepBrandingConfiguration: onboarding.ApplierFunc(a.applyBranding),
		onboarding.StepFeatureSelection:      onboarding.ApplierFunc(a.applyFeatures),
		onboarding.StepDataImport:            onboarding.ApplierFunc(a.applyDataImport),
		onboarding.StepTeamInvites:           onboarding.ApplierFunc(a.applyTeamInvites),
	}
	for kind, applier := range bindings {
		if err := registry.Register(kind, applier); err != nil {
			return err
		}
	}
	return nil
}

// Predicates returns the read-only probes that let the detector complete a
// step the tenant already satisfied through the settings pages.
func (a *Appliers) Predicates() map[onboarding.StepKind]onboarding.AutoProgressPredicate {
	return map[onboarding.StepKind]onboarding.AutoProgressPredicate{
		onboarding.StepBusinessVerification:  onboarding.PredicateFunc(a.verificationSatisfied),
		onboarding.StepSubscriptionPlan:      onboarding.PredicateFunc(a.subscriptionSatisfied),
		onboarding.StepBrandingConfiguration: onboarding.PredicateFunc(a.brandingSatisfied),
		onboarding.StepFeatureSelection:      onboarding.PredicateFunc(a.featuresSatisfied),
	}
}

// =====================================================
// Appliers
// =====================================================

func (a *Appliers) applyVerification(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		LegalName string `json:"legal_name"`
		TaxID     string `json:"tax_id"`
		Country   string `json:"country"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.LegalName) == "" {
		return &onboarding.ValidationError{Kind: onboarding.StepBusinessVerification, Reason: "legal_name is required"}
	}
	if strings.TrimSpace(payload.TaxID) == "" {
		return &onboarding.ValidationError{Kind: onboarding.StepBusinessVerification, Reason: "tax_id is required"}
	}

	return a.repo.UpsertVerification(ctx, &Verification{
		TenantID:    tenantID,
		LegalName:   payload.LegalName,
		TaxID:       payload.TaxID,
		Country:     payload.Country,
		Status:      VerificationStatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	})
}

func (a *Appliers) applySubscription(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		PlanCode     string `json:"plan_code"`
		BillingCycle string `json:"billing_cycle"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}
	if payload.PlanCode == "" {
		return &onboarding.ValidationError{Kind: onboarding.StepSubscriptionPlan, Reason: "plan_code is required"}
	}
	if payload.BillingCycle == "" {
		payload.BillingCycle = "monthly"
	}

	return a.repo.UpsertSubscription(ctx, &Subscription{
		TenantID:     tenantID,
		PlanCode:     payload.PlanCode,
		BillingCycle: payload.BillingCycle,
		Status:       "active",
	})
}

func (a *Appliers) applyBranding(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		CompanyName    string `json:"company_name"`
		LogoURL        string `json:"logo_url"`
		PrimaryColor   string `json:"primary_color"`
		SecondaryColor string `json:"secondary_color"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}
	if payload.CompanyName == "" && payload.LogoURL == "" && payload.PrimaryColor == "" {
		return &onboarding.ValidationError{Kind: onboarding.StepBrandingConfiguration, Reason: "at least one branding field is required"}
	}

	return a.repo.UpsertBranding(ctx, &Branding{
		TenantID:       tenantID,
		CompanyName:    payload.CompanyName,
		LogoURL:        payload.LogoURL,
		PrimaryColor:   payload.PrimaryColor,
		SecondaryColor: payload.SecondaryColor,
	})
}

func (a *Appliers) applyFeatures(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		EnabledFeatures []string `json:"enabled_features"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}
	if len(payload.EnabledFeatures) == 0 {
		return &onboarding.ValidationError{Kind: onboarding.StepFeatureSelection, Reason: "select at least one feature"}
	}

	return a.repo.UpsertFeatures(ctx, &Features{
		TenantID:        tenantID,
		EnabledFeatures: payload.EnabledFeatures,
	})
}

func (a *Appliers) applyDataImport(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		Imports []struct {
			Source string `json:"source"`
			Entity string `json:"entity"`
		} `json:"imports"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}

	// The import step is optional; completing it with nothing to import is
	// a valid "nothing to migrate" answer.
	for _, entry := range payload.Imports {
		if entry.Source == "" || entry.Entity == "" {
			return &onboarding.ValidationError{Kind: onboarding.StepDataImport, Reason: "each import needs a source and an entity"}
		}
		if err := a.repo.CreateImportJob(ctx, &ImportJob{
			ID:       uuid.New(),
			TenantID: tenantID,
			Source:   entry.Source,
			Entity:   entry.Entity,
			Status:   ImportStatusQueued,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Appliers) applyTeamInvites(ctx context.Context, tenantID uuid.UUID, data onboarding.JSONB) error {
	var payload struct {
		Invites []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"invites"`
	}
	if err := decode(data, &payload); err != nil {
		return err
	}

	invites := make([]TeamInvite, 0, len(payload.Invites))
	for _, entry := range payload.Invites {
		if !strings.Contains(entry.Email, "@") {
			return &onboarding.ValidationError{Kind: onboarding.StepTeamInvites, Reason: fmt.Sprintf("invalid email %q", entry.Email)}
		}
		role := entry.Role
		if role == "" {
			role = "member"
		}
		invites = append(invites, TeamInvite{
			ID:       uuid.New(),
			TenantID: tenantID,
			Email:    entry.Email,
			Role:     role,
			Status:   InviteStatusPending,
		})
	}
	if len(invites) == 0 {
		return nil
	}
	return a.repo.CreateInvites(ctx, invites)
}

// =====================================================
// Auto-progress predicates
// =====================================================

func (a *Appliers) brandingSatisfied(ctx context.Context, tenantID uuid.UUID) (bool, onboarding.JSONB, error) {
	branding, err := a.repo.GetBranding(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if branding.CompanyName == "" && branding.LogoURL == "" && branding.PrimaryColor == "" {
		return false, nil, nil
	}
	return true, snapshot(branding), nil
}

func (a *Appliers) featuresSatisfied(ctx context.Context, tenantID uuid.UUID) (bool, onboarding.JSONB, error) {
	features, err := a.repo.GetFeatures(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if len(features.EnabledFeatures) == 0 {
		return false, nil, nil
	}
	return true, snapshot(features), nil
}

func (a *Appliers) subscriptionSatisfied(ctx context.Context, tenantID uuid.UUID) (bool, onboarding.JSONB, error) {
	subscription, err := a.repo.GetSubscription(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if subscription.Status != "active" {
		return false, nil, nil
	}
	return true, snapshot(subscription), nil
}

func (a *Appliers) verificationSatisfied(ctx context.Context, tenantID uuid.UUID) (bool, onboarding.JSONB, error) {
	verification, err := a.repo.GetVerification(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, snapshot(verification), nil
}

// =====================================================
// Helpers
// =====================================================

// decode round-trips the opaque step payload into a typed request.
func decode(data onboarding.JSONB, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode step payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode step payload: %w", err)
	}
	return nil
}

// snapshot converts a domain record into the step_data shape the summary
// view renders.
func snapshot(record interface{}) onboarding.JSONB {
	raw, err := json.Marshal(record)
	if err != nil {
		return onboarding.JSONB{}
	}
	var data onboarding.JSONB
	if err := json.Unmarshal(raw, &data); err != nil {
		return onboarding.JSONB{}
	}
	return data
}

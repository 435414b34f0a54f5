package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound indicates the tenant has no record of the requested kind yet.
var ErrNotFound = errors.New("tenant: not found")

// Repository defines the interface for tenant domain data access
type Repository interface {
	GetBranding(ctx context.Context, tenantID uuid.UUID) (*Branding, error)
	UpsertBranding(ctx context.Context, branding *Branding) error

	GetFeatures(ctx context.Context, tenantID uuid.UUID) (*Features, error)
	UpsertFeatures(ctx context.Context, features *Features) error

	GetSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	UpsertSubscription(ctx context.Context, subscription *Subscription) error

	GetVerification(ctx context.Context, tenantID uuid.UUID) (*Verification, error)
	UpsertVerification(ctx context.Context, verification *Verification) error

	CreateInvites(ctx context.Context, invites []TeamInvite) error
	ListInvites(ctx context.Context, tenantID uuid.UUID) ([]TeamInvite, error)

	CreateImportJob(ctx context.Context, job *ImportJob) error
	ListImportJobs(ctx context.Context, tenantID uuid.UUID) ([]ImportJob, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetBranding(ctx context.Context, tenantID uuid.UUID) (*Branding, error) {
	query := `
		SELECT tenant_id, company_name, logo_url, primary_color, secondary_color, created_at, updated_at
		FROM tenant_branding WHERE tenant_id = $1
	`
	var branding Branding
	if err := r.db.GetContext(ctx, &branding, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get branding: %w", err)
	}
	return &branding, nil
}

func (r *PostgresRepository) UpsertBranding(ctx context.Context, branding *Branding) error {
	query := `
		INSERT INTO tenant_branding (tenant_id, company_name, logo_url, primary_color, secondary_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		branding.TenantID, branding.CompanyName, branding.LogoURL,
		branding.PrimaryColor, branding.SecondaryColor,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert branding: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetFeatures(ctx context.Context, tenantID uuid.UUID) (*Features, error) {
	query := `
		SELECT tenant_id, enabled_features, created_at, updated_at
		FROM tenant_features WHERE tenant_id = $1
	`
	var features Features
	if err := r.db.GetContext(ctx, &features, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get features: %w", err)
	}
	return &features, nil
}

func (r *PostgresRepository) UpsertFeatures(ctx context.Context, features *Features) error {
	query := `
		INSERT INTO tenant_features (tenant_id, enabled_features, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled_features = EXCLUDED.enabled_features,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, features.TenantID, features.EnabledFeatures); err != nil {
		return fmt.Errorf("failed to upsert features: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	query := `
		SELECT tenant_id, plan_code, billing_cycle, status, created_at, updated_at
		FROM tenant_subscriptions WHERE tenant_id = $1
	`
	var subscription Subscription
	if err := r.db.GetContext(ctx, &subscription, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &subscription, nil
}

func (r *PostgresRepository) UpsertSubscription(ctx context.Context, subscription *Subscription) error {
	query := `
		INSERT INTO tenant_subscriptions (tenant_id, plan_code, billing_cycle, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan_code = EXCLUDED.plan_code,
			billing_cycle = EXCLUDED.billing_cycle,
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		subscription.TenantID, subscription.PlanCode, subscription.BillingCycle, subscription.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetVerification(ctx context.Context, tenantID uuid.UUID) (*Verification, error) {
	query := `
		SELECT tenant_id, legal_name, tax_id, country, status, submitted_at, updated_at
		FROM business_verifications WHERE tenant_id = $1
	`
	var verification Verification
	if err := r.db.GetContext(ctx, &verification, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &verification, nil
}

func (r *PostgresRepository) UpsertVerification(ctx context.Context, verification *Verification) error {
	query := `
		INSERT INTO business_verifications (tenant_id, legal_name, tax_id, country, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			legal_name = EXCLUDED.legal_name,
			tax_id = EXCLUDED.tax_id,
			country = EXCLUDED.country,
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		verification.TenantID, verification.LegalName, verification.TaxID,
		verification.Country, verification.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert verification: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateInvites(ctx context.Context, invites []TeamInvite) error {
	query := `
		INSERT INTO team_invites (id, tenant_id, email, role, status, invited_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id, email) DO UPDATE SET
			role = EXCLUDED.role
	`
	for _, invite := range invites {
		if _, err := r.db.ExecContext(ctx, query,
			invite.ID, invite.TenantID, invite.Email, invite.Role, invite.Status,
		); err != nil {
			return fmt.Errorf("failed to create invite for %s: %w", invite.Email, err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListInvites(ctx context.Context, tenantID uuid.UUID) ([]TeamInvite, error) {
	query := `
		SELECT id, tenant_id, email, role, status, invited_at
		FROM team_invites WHERE tenant_id = $1 ORDER BY invited_at
	`
	invites := []TeamInvite{}
	if err := r.db.SelectContext(ctx, &invites, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}

func (r *PostgresRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		INSERT INTO data_import_jobs (id, tenant_id, source, entity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query,
		job.ID, job.TenantID, job.Source, job.Entity, job.Status,
	); err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListImportJobs(ctx context.Context, tenantID uuid.UUID) ([]ImportJob, error) {
	query := `
		SELECT id, tenant_id, source, entity, status, created_at
		FROM data_import_jobs WHERE tenant_id = $1 ORDER BY created_at
	`
	jobs := []ImportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	return jobs, nil
}

package tenant

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service provides the settings-page operations on tenant domain records.
// Writes here are the "outside the wizard" path: onboarding auto-progress
// picks them up on the next workflow load.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new tenant service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetBranding(ctx context.Context, tenantID uuid.UUID) (*Branding, error) {
	return s.repo.GetBranding(ctx, tenantID)
}

func (s *Service) UpdateBranding(ctx context.Context, branding *Branding) error {
	if err := s.repo.UpsertBranding(ctx, branding); err != nil {
		return err
	}
	s.logger.Info("branding updated", zap.String("tenant_id", branding.TenantID.String()))
	return nil
}

func (s *Service) GetFeatures(ctx context.Context, tenantID uuid.UUID) (*Features, error) {
	return s.repo.GetFeatures(ctx, tenantID)
}

func (s *Service) UpdateFeatures(ctx context.Context, features *Features) error {
	return s.repo.UpsertFeatures(ctx, features)
}

func (s *Service) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return s.repo.GetSubscription(ctx, tenantID)
}

func (s *Service) ListInvites(ctx context.Context, tenantID uuid.UUID) ([]TeamInvite, error) {
	return s.repo.ListInvites(ctx, tenantID)
}

func (s *Service) ListImportJobs(ctx context.Context, tenantID uuid.UUID) ([]ImportJob, error) {
	return s.repo.ListImportJobs(ctx, tenantID)
}

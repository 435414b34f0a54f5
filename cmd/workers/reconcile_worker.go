package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/internal/config"
	"agritenant/tenant-portal/tenant-portal-backend/internal/onboarding"
	"agritenant/tenant-portal/tenant-portal-backend/internal/tenant"
)

// ReconcileWorker sweeps in-progress onboarding workflows: it repairs
// missing or inconsistent workflow data and re-runs auto-progress for
// tenants whose domain state drifted while no session was connected. The
// engine itself is event-driven; this sweep is a safety net, not the
// progress mechanism.
type ReconcileWorker struct {
	db      *sqlx.DB
	service *onboarding.Service
	logger  *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(db *sqlx.DB, service *onboarding.Service, logger *zap.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		db:      db,
		service: service,
		logger:  logger,
	}
}

// Sweep validates every in-progress workflow once.
func (w *ReconcileWorker) Sweep(ctx context.Context) {
	tenantIDs, err := w.inProgressTenants(ctx)
	if err != nil {
		w.logger.Error("failed to list in-progress tenants", zap.Error(err))
		return
	}
	w.logger.Info("starting reconcile sweep", zap.Int("tenants", len(tenantIDs)))

	repaired := 0
	for _, tenantID := range tenantIDs {
		report, err := w.service.ValidateWorkflow(ctx, tenantID)
		if err != nil {
			w.logger.Warn("validation failed for tenant",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
			continue
		}
		if report.Repaired {
			repaired++
		}

		// GetWorkflow re-evaluates auto-progress as part of the load.
		if _, err := w.service.GetWorkflow(ctx, tenantID); err != nil {
			w.logger.Warn("auto-progress sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}

	w.logger.Info("reconcile sweep finished",
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("repaired", repaired))
}

func (w *ReconcileWorker) inProgressTenants(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT tenant_id FROM onboarding_workflows WHERE status = 'in_progress'`
	tenantIDs := []uuid.UUID{}
	if err := w.db.SelectContext(ctx, &tenantIDs, query); err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	tenantRepo := tenant.NewPostgresRepository(db)
	appliers := tenant.NewAppliers(tenantRepo)

	applierRegistry := onboarding.NewApplierRegistry()
	if err := appliers.Register(applierRegistry); err != nil {
		logger.Fatal("Failed to register domain appliers", zap.Error(err))
	}

	onboardingRepo := onboarding.NewPostgresRepository(db)
	detector := onboarding.NewAutoProgressDetector(onboardingRepo, appliers.Predicates(), logger)
	service := onboarding.NewService(onboardingRepo, applierRegistry, detector, onboarding.NopBroadcaster{}, logger)

	worker := NewReconcileWorker(db, service, logger)

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(cfg.Worker.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		worker.Sweep(ctx)
	}); err != nil {
		logger.Fatal("Invalid reconcile schedule", zap.Error(err))
	}
	scheduler.Start()
	logger.Info("Reconcile worker started", zap.String("schedule", cfg.Worker.ReconcileSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Reconcile worker shutting down")
	<-scheduler.Stop().Done()
}

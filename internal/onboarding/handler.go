package onboarding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/internal/auth"
)

// Handler handles HTTP requests for the onboarding workflow
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers onboarding routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	onboarding := router.Group("/onboarding")
	{
		onboarding.GET("", h.getWorkflow)
		onboarding.POST("/steps/:id/complete", h.completeStep)
		onboarding.POST("/steps/:id/skip", h.skipStep)
		onboarding.POST("/steps/:id/reopen", h.reopenStep)
		onboarding.POST("/navigate", h.navigate)
		onboarding.POST("/finalize", h.finalize)
		onboarding.GET("/validate", h.validate)
	}
}

// getWorkflow handles GET /api/v1/onboarding
func (h *Handler) getWorkflow(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	view, err := h.service.GetWorkflow(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// completeStep handles POST /api/v1/onboarding/steps/:id/complete
func (h *Handler) completeStep(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}
	stepID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}

	// An empty body is a valid completion with no payload.
	var req struct {
		StepData JSONB `json:"step_data"`
	}
	_ = c.ShouldBindJSON(&req)

	step, err := h.service.CompleteStep(c.Request.Context(), tenantID, stepID, req.StepData)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// skipStep handles POST /api/v1/onboarding/steps/:id/skip
func (h *Handler) skipStep(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}
	stepID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}

	step, err := h.service.SkipStep(c.Request.Context(), tenantID, stepID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// reopenStep handles POST /api/v1/onboarding/steps/:id/reopen
func (h *Handler) reopenStep(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}
	stepID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
		return
	}

	step, err := h.service.ReopenStep(c.Request.Context(), tenantID, stepID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// navigate handles POST /api/v1/onboarding/navigate
func (h *Handler) navigate(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	var req struct {
		StepIndex int `json:"step_index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	step, err := h.service.NavigateTo(c.Request.Context(), tenantID, req.StepIndex)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// finalize handles POST /api/v1/onboarding/finalize
func (h *Handler) finalize(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	workflow, err := h.service.FinalizeWorkflow(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// validate handles GET /api/v1/onboarding/validate
func (h *Handler) validate(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	report, err := h.service.ValidateWorkflow(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// respondError maps the engine's error taxonomy onto HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var validation *ValidationError
	var applier *ApplierError
	var incomplete *IncompleteStepsError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validation.Error(),
			"step":  string(validation.Kind),
		})
	case errors.As(err, &applier):
		// The step keeps its prior status; the client may retry.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     applier.Error(),
			"step":      string(applier.Kind),
			"retryable": true,
		})
	case errors.As(err, &incomplete):
		steps := make([]string, len(incomplete.Steps))
		for i, kind := range incomplete.Steps {
			steps[i] = string(kind)
		}
		c.JSON(http.StatusConflict, gin.H{
			"error":            incomplete.Error(),
			"incomplete_steps": steps,
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "onboarding workflow or step not found, please refresh"})
	case errors.Is(err, ErrNavigationBlocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrWorkflowCompleted), errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("onboarding request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package tenant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/internal/auth"
)

// Handler handles HTTP requests for tenant settings
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new tenant handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers tenant settings routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	tenant := router.Group("/tenant")
	{
		tenant.GET("/branding", h.getBranding)
		tenant.PUT("/branding", h.updateBranding)
		tenant.GET("/features", h.getFeatures)
		tenant.PUT("/features", h.updateFeatures)
		tenant.GET("/subscription", h.getSubscription)
		tenant.GET("/invites", h.listInvites)
		tenant.GET("/imports", h.listImportJobs)
	}
}

func (h *Handler) getBranding(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	branding, err := h.service.GetBranding(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branding)
}

func (h *Handler) updateBranding(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	var branding Branding
	if err := c.ShouldBindJSON(&branding); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	branding.TenantID = tenantID

	if err := h.service.UpdateBranding(c.Request.Context(), &branding); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, branding)
}

func (h *Handler) getFeatures(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	features, err := h.service.GetFeatures(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, features)
}

func (h *Handler) updateFeatures(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	var features Features
	if err := c.ShouldBindJSON(&features); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	features.TenantID = tenantID

	if err := h.service.UpdateFeatures(c.Request.Context(), &features); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, features)
}

func (h *Handler) getSubscription(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	subscription, err := h.service.GetSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subscription)
}

func (h *Handler) listInvites(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	invites, err := h.service.ListInvites(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invites)
}

func (h *Handler) listImportJobs(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	jobs, err := h.service.ListImportJobs(c.Request.Context(), tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.logger.Error("tenant request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

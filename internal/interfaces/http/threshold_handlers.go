package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// CreateThreshold handles POST /api/v1/thresholds
func (h *Handlers) CreateThreshold(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.CreateThresholdInput
	if !h.bind(c, &input) {
		return
	}
	input.WorkspaceID = workspaceID(c)
	input.CreatedBy = a.UserID

	threshold, err := h.services.Thresholds.CreateThreshold(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Threshold created", "threshold_id", threshold.ID, "entity_type", threshold.EntityType, "created_by", a.UserID)
	h.ok(c, http.StatusCreated, threshold)
}

// ListThresholds handles GET /api/v1/thresholds
func (h *Handlers) ListThresholds(c *gin.Context) {
	thresholds, err := h.services.Thresholds.GetAllThresholds(c.Request.Context(), workspaceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, thresholds)
}

// ListThresholdsByEntityType handles GET /api/v1/thresholds/entity/:entityType
func (h *Handlers) ListThresholdsByEntityType(c *gin.Context) {
	entityType := entity.EntityType(c.Param("entityType"))

	thresholds, err := h.services.Thresholds.GetThresholdsByEntityType(c.Request.Context(), workspaceID(c), entityType)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, thresholds)
}

// GetThreshold handles GET /api/v1/thresholds/:id
func (h *Handlers) GetThreshold(c *gin.Context) {
	threshold, err := h.services.Thresholds.GetThreshold(c.Request.Context(), workspaceID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, threshold)
}

// UpdateThreshold handles PATCH /api/v1/thresholds/:id
func (h *Handlers) UpdateThreshold(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var patch entity.ThresholdPatch
	if !h.bind(c, &patch) {
		return
	}

	threshold, err := h.services.Thresholds.UpdateThreshold(c.Request.Context(), workspaceID(c), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Threshold updated", "threshold_id", threshold.ID, "updated_by", a.UserID)
	h.ok(c, http.StatusOK, threshold)
}

// DeleteThreshold handles DELETE /api/v1/thresholds/:id
func (h *Handlers) DeleteThreshold(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.services.Thresholds.DeleteThreshold(c.Request.Context(), workspaceID(c), id); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Threshold deleted", "threshold_id", id, "deleted_by", a.UserID)
	h.ok(c, http.StatusOK, gin.H{"id": id})
}

// ValidateThresholds handles GET /api/v1/thresholds/validate
func (h *Handlers) ValidateThresholds(c *gin.Context) {
	issues, err := h.services.Thresholds.ValidateWorkspaceThresholds(c.Request.Context(), workspaceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if issues == nil {
		issues = []entity.ThresholdIssue{}
	}
	h.ok(c, http.StatusOK, gin.H{
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// ThresholdUsage handles GET /api/v1/thresholds/usage
func (h *Handlers) ThresholdUsage(c *gin.Context) {
	stats, err := h.services.Thresholds.GetThresholdUsageStats(c.Request.Context(), workspaceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, stats)
}

// ResolveThreshold handles GET /api/v1/thresholds/resolve?entityType&category&amount
func (h *Handlers) ResolveThreshold(c *gin.Context) {
	amount, err := queryFloat(c, "amount")
	if err != nil {
		h.fail(c, err)
		return
	}

	resolution, err := h.services.Resolver.Resolve(
		c.Request.Context(),
		workspaceID(c),
		entity.EntityType(c.Query("entityType")),
		c.Query("category"),
		amount,
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, resolution)
}

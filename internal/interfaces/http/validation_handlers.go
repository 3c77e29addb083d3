package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// CreateValidationRequest handles POST /api/v1/validations
func (h *Handlers) CreateValidationRequest(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.CreateRequestInput
	if !h.bind(c, &input) {
		return
	}
	input.WorkspaceID = workspaceID(c)
	input.RequestedBy = a.UserID

	req, err := h.services.Validation.CreateValidationRequest(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, req)
}

// GetValidationRequest handles GET /api/v1/validations/:id
func (h *Handlers) GetValidationRequest(c *gin.Context) {
	req, err := h.services.Validation.GetValidationRequest(c.Request.Context(), workspaceID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, req)
}

// ProcessValidation handles POST /api/v1/validations/:id/decision
func (h *Handlers) ProcessValidation(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.ProcessValidationInput
	if !h.bind(c, &input) {
		return
	}
	input.WorkspaceID = workspaceID(c)
	input.ValidationRequestID = c.Param("id")
	input.ValidatedBy = a.UserID
	input.ValidatorLevel = a.Level
	input.IPAddress = c.ClientIP()
	input.UserAgent = c.Request.UserAgent()

	req, err := h.services.Validation.ProcessValidation(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Validation decision recorded",
		"request_id", req.ID,
		"validated_by", a.UserID,
		"decision", input.Status,
		"status", req.Status,
	)
	h.ok(c, http.StatusOK, req)
}

// PendingValidations handles GET /api/v1/validations/pending?level=
// The level falls back to the X-Validator-Level header.
func (h *Handlers) PendingValidations(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	level := entity.ValidationLevel(c.Query("level"))
	if level == "" {
		level = a.Level
	}

	requests, err := h.services.Validation.GetPendingValidations(c.Request.Context(), workspaceID(c), a.UserID, level)
	if err != nil {
		h.fail(c, err)
		return
	}
	if requests == nil {
		requests = []*entity.ValidationRequest{}
	}
	h.ok(c, http.StatusOK, requests)
}

// ValidationHistory handles GET /api/v1/validations/history/:entityType/:entityId
func (h *Handlers) ValidationHistory(c *gin.Context) {
	requests, err := h.services.Validation.GetValidationHistory(
		c.Request.Context(),
		workspaceID(c),
		entity.EntityType(c.Param("entityType")),
		c.Param("entityId"),
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	if requests == nil {
		requests = []*entity.ValidationRequest{}
	}
	h.ok(c, http.StatusOK, requests)
}

// ValidatorStats handles GET /api/v1/validations/stats/validators/:validatorId?start&end
func (h *Handlers) ValidatorStats(c *gin.Context) {
	start, err := queryTime(c, "start", false)
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := queryTime(c, "end", true)
	if err != nil {
		h.fail(c, err)
		return
	}

	stats, err := h.services.Statistics.GetValidatorStats(c.Request.Context(), workspaceID(c), c.Param("validatorId"), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, stats)
}

// WorkflowStats handles GET /api/v1/validations/stats
func (h *Handlers) WorkflowStats(c *gin.Context) {
	stats, err := h.services.Statistics.GetWorkflowStats(c.Request.Context(), workspaceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, stats)
}

package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/validation-workflow/internal/application/service"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// ExecuteRulesRequest is the body of POST /api/v1/rules/execute
type ExecuteRulesRequest struct {
	DecisionType  string                 `json:"decision_type"`
	ReferenceID   string                 `json:"reference_id"`
	ReferenceData map[string]interface{} `json:"reference_data"`
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.RuleInput
	if !h.bind(c, &input) {
		return
	}
	input.WorkspaceID = workspaceID(c)
	input.CreatedBy = a.UserID
	input.CreatedByName = a.UserName

	rule, err := h.services.Rules.CreateRule(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Rule created", "rule_id", rule.ID, "decision_type", rule.DecisionType, "created_by", a.UserID)
	h.ok(c, http.StatusCreated, rule)
}

// ListRules handles GET /api/v1/rules?decision_type=
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.services.Rules.ListRules(c.Request.Context(), workspaceID(c), c.Query("decision_type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rules == nil {
		rules = []*entity.DecisionRule{}
	}
	h.ok(c, http.StatusOK, rules)
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.services.Rules.GetRule(c.Request.Context(), workspaceID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.RuleInput
	if !h.bind(c, &input) {
		return
	}
	input.WorkspaceID = workspaceID(c)

	rule, err := h.services.Rules.UpdateRule(c.Request.Context(), workspaceID(c), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Rule updated", "rule_id", rule.ID, "updated_by", a.UserID)
	h.ok(c, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.services.Rules.DeleteRule(c.Request.Context(), workspaceID(c), id); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Rule deleted", "rule_id", id, "deleted_by", a.UserID)
	h.ok(c, http.StatusOK, gin.H{"id": id})
}

// ToggleRule handles POST /api/v1/rules/:id/toggle
func (h *Handlers) ToggleRule(c *gin.Context) {
	if _, ok := h.requireActor(c); !ok {
		return
	}

	rule, err := h.services.Rules.ToggleRule(c.Request.Context(), workspaceID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rule)
}

// DuplicateRule handles POST /api/v1/rules/:id/duplicate
func (h *Handlers) DuplicateRule(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	rule, err := h.services.Rules.DuplicateRule(c.Request.Context(), workspaceID(c), c.Param("id"), a.UserID, a.UserName)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, rule)
}

// RuleExecutions handles GET /api/v1/rules/:id/executions?limit=
func (h *Handlers) RuleExecutions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, apperr.Validation("limit must be an integer"))
			return
		}
		limit = n
	}

	executions, err := h.services.Rules.GetRuleExecutions(c.Request.Context(), workspaceID(c), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if executions == nil {
		executions = []*entity.RuleExecution{}
	}
	h.ok(c, http.StatusOK, executions)
}

// ExecuteRules handles POST /api/v1/rules/execute
func (h *Handlers) ExecuteRules(c *gin.Context) {
	var req ExecuteRulesRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.services.Rules.ExecuteRulesForContext(
		c.Request.Context(),
		workspaceID(c),
		req.DecisionType,
		req.ReferenceID,
		req.ReferenceData,
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, result)
}

// ListRuleTemplates handles GET /api/v1/rule-templates
func (h *Handlers) ListRuleTemplates(c *gin.Context) {
	h.ok(c, http.StatusOK, h.services.Rules.ListTemplates())
}

// CreateRuleFromTemplate handles POST /api/v1/rule-templates/:id/rules
func (h *Handlers) CreateRuleFromTemplate(c *gin.Context) {
	a, ok := h.requireActor(c)
	if !ok {
		return
	}

	var input service.TemplateRuleInput
	if c.Request.ContentLength != 0 && !h.bind(c, &input) {
		return
	}
	input.TemplateID = c.Param("id")
	input.WorkspaceID = workspaceID(c)
	input.UserID = a.UserID
	input.UserName = a.UserName

	rule, err := h.services.Rules.CreateRuleFromTemplate(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, rule)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/validation-workflow/internal/application/dispatcher"
	"github.com/garyjia/validation-workflow/internal/application/port"
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
	"github.com/garyjia/validation-workflow/internal/domain/event"
	"github.com/google/uuid"
)

const defaultExecutionHistoryLimit = 50

// RuleEngine evaluates decision rules and manages their lifecycle
type RuleEngine interface {
	ExecuteRulesForContext(ctx context.Context, workspaceID, decisionType, referenceID string, referenceData map[string]interface{}) (*entity.RuleExecutionResult, error)

	CreateRule(ctx context.Context, input RuleInput) (*entity.DecisionRule, error)
	UpdateRule(ctx context.Context, workspaceID, id string, input RuleInput) (*entity.DecisionRule, error)
	DeleteRule(ctx context.Context, workspaceID, id string) error
	GetRule(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error)
	ListRules(ctx context.Context, workspaceID, decisionType string) ([]*entity.DecisionRule, error)
	ToggleRule(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error)
	DuplicateRule(ctx context.Context, workspaceID, id, userID, userName string) (*entity.DecisionRule, error)

	ListTemplates() []entity.RuleTemplate
	CreateRuleFromTemplate(ctx context.Context, input TemplateRuleInput) (*entity.DecisionRule, error)

	GetRuleExecutions(ctx context.Context, workspaceID, ruleID string, limit int) ([]*entity.RuleExecution, error)
}

// RuleInput carries the writable fields of a rule
type RuleInput struct {
	WorkspaceID       string                 `json:"-"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	DecisionType      string                 `json:"decision_type"`
	TriggerType       string                 `json:"trigger_type"`
	Conditions        []entity.RuleCondition `json:"conditions"`
	RecommendedAction string                 `json:"recommended_action"`
	AutoExecute       bool                   `json:"auto_execute"`
	RequiresApproval  bool                   `json:"requires_approval"`
	Priority          int                    `json:"priority"`
	IsActive          *bool                  `json:"is_active"`
	NotifyOnMatch     bool                   `json:"notify_on_match"`
	NotifyRoles       []string               `json:"notify_roles"`
	TemplateID        string                 `json:"-"`
	CreatedBy         string                 `json:"-"`
	CreatedByName     string                 `json:"-"`
}

// TemplateRuleInput instantiates a rule from a catalog template
type TemplateRuleInput struct {
	TemplateID      string                 `json:"-"`
	Name            string                 `json:"name"`
	ConditionValues map[string]interface{} `json:"condition_values"`
	WorkspaceID     string                 `json:"-"`
	UserID          string                 `json:"-"`
	UserName        string                 `json:"-"`
}

// RuleEngineOption configures the rule engine
type RuleEngineOption func(*ruleEngineImpl)

// WithRuleDispatcher emits rule.matched events
func WithRuleDispatcher(d dispatcher.Dispatcher) RuleEngineOption {
	return func(e *ruleEngineImpl) {
		e.dispatcher = d
	}
}

// WithExecutionHistoryLimit caps the executions returned per rule
func WithExecutionHistoryLimit(limit int) RuleEngineOption {
	return func(e *ruleEngineImpl) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

type ruleEngineImpl struct {
	ruleRepo      port.RuleRepository
	executionRepo port.RuleExecutionRepository
	txManager     port.TransactionManager
	dispatcher    dispatcher.Dispatcher
	logger        Logger
	historyLimit  int
	now           func() time.Time
}

// NewRuleEngine creates a new RuleEngine
func NewRuleEngine(
	ruleRepo port.RuleRepository,
	executionRepo port.RuleExecutionRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...RuleEngineOption,
) RuleEngine {
	e := &ruleEngineImpl{
		ruleRepo:      ruleRepo,
		executionRepo: executionRepo,
		txManager:     txManager,
		logger:        logger,
		historyLimit:  defaultExecutionHistoryLimit,
		now:           func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExecuteRulesForContext evaluates every active rule of the decision type in
// priority order. Each rule needs all of its conditions to match. Every
// evaluated rule leaves an execution record; side effects of the recommended
// actions are left to the caller.
func (e *ruleEngineImpl) ExecuteRulesForContext(ctx context.Context, workspaceID, decisionType, referenceID string, referenceData map[string]interface{}) (*entity.RuleExecutionResult, error) {
	if workspaceID == "" {
		return nil, apperr.Validation("workspace id is required")
	}
	if decisionType == "" {
		return nil, apperr.Validation("decision type is required")
	}
	if referenceData == nil {
		referenceData = map[string]interface{}{}
	}

	rules, err := e.ruleRepo.List(ctx, port.RuleFilter{
		WorkspaceID:  workspaceID,
		DecisionType: decisionType,
		ActiveOnly:   true,
	})
	if err != nil {
		e.logger.Error("Failed to load rules", "error", err, "decision_type", decisionType)
		return nil, fmt.Errorf("load rules: %w", err)
	}

	result := &entity.RuleExecutionResult{
		MatchedRules:    []*entity.DecisionRule{},
		Recommendations: []entity.Recommendation{},
		Executions:      make([]*entity.RuleExecution, 0, len(rules)),
	}

	for _, rule := range rules {
		execution := e.evaluateRule(rule, decisionType, referenceID, referenceData)
		result.Executions = append(result.Executions, execution)

		if execution.ConditionsMatched {
			result.MatchedRules = append(result.MatchedRules, rule)
			result.Recommendations = append(result.Recommendations, entity.Recommendation{
				RuleID:           rule.ID,
				RuleName:         rule.Name,
				Action:           rule.RecommendedAction,
				AutoExecute:      rule.AutoExecute,
				RequiresApproval: rule.RequiresApproval,
				Priority:         rule.Priority,
				NotifyRoles:      rule.NotifyRoles,
			})
		}
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, execution := range result.Executions {
			if err := e.executionRepo.Create(txCtx, execution); err != nil {
				return fmt.Errorf("record execution: %w", err)
			}
			if err := e.ruleRepo.RecordExecution(txCtx, execution.RuleID, execution.ConditionsMatched, execution.ExecutedAt); err != nil {
				return fmt.Errorf("update rule counters: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to persist rule executions", "error", err, "reference_id", referenceID)
		return nil, err
	}

	e.logger.Info("Rules executed",
		"workspace_id", workspaceID,
		"decision_type", decisionType,
		"reference_id", referenceID,
		"evaluated", len(result.Executions),
		"matched", len(result.MatchedRules),
	)

	for _, rule := range result.MatchedRules {
		e.publishMatch(ctx, rule, referenceID)
	}

	return result, nil
}

func (e *ruleEngineImpl) evaluateRule(rule *entity.DecisionRule, decisionType, referenceID string, data map[string]interface{}) *entity.RuleExecution {
	start := time.Now()

	matched := []entity.RuleCondition{}
	allMatched := true
	for _, cond := range rule.Conditions {
		ok, err := evaluateCondition(cond, data)
		if err != nil {
			e.logger.Error("Condition evaluation failed",
				"rule_id", rule.ID,
				"field", cond.Field,
				"operator", cond.Operator,
				"error", err,
			)
		}
		if ok {
			matched = append(matched, cond)
		} else {
			allMatched = false
		}
	}

	execution := &entity.RuleExecution{
		ID:                uuid.NewString(),
		RuleID:            rule.ID,
		WorkspaceID:       rule.WorkspaceID,
		DecisionType:      decisionType,
		ReferenceID:       referenceID,
		ConditionsMatched: allMatched,
		MatchedConditions: matched,
		ExecutionTimeMs:   float64(time.Since(start).Microseconds()) / 1000,
		ExecutedAt:        e.now(),
	}
	if allMatched {
		execution.RecommendedAction = rule.RecommendedAction
	}
	return execution
}

func (e *ruleEngineImpl) CreateRule(ctx context.Context, input RuleInput) (*entity.DecisionRule, error) {
	if err := validateRuleInput(&input); err != nil {
		return nil, err
	}

	now := e.now()
	rule := &entity.DecisionRule{
		ID:                uuid.NewString(),
		WorkspaceID:       input.WorkspaceID,
		TemplateID:        input.TemplateID,
		CreatedBy:         input.CreatedBy,
		CreatedByName:     input.CreatedByName,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
		NotifyRoles:       []string{},
	}
	applyRuleInput(rule, input)

	if err := e.ruleRepo.Create(ctx, rule); err != nil {
		e.logger.Error("Failed to create rule", "error", err, "name", rule.Name)
		return nil, err
	}

	e.logger.Info("Rule created", "id", rule.ID, "workspace_id", rule.WorkspaceID, "decision_type", rule.DecisionType)
	return rule, nil
}

// UpdateRule replaces the writable fields. Counters and authorship are kept.
func (e *ruleEngineImpl) UpdateRule(ctx context.Context, workspaceID, id string, input RuleInput) (*entity.DecisionRule, error) {
	input.WorkspaceID = workspaceID
	if err := validateRuleInput(&input); err != nil {
		return nil, err
	}

	rule, err := e.GetRule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	applyRuleInput(rule, input)
	rule.UpdatedAt = e.now()

	if err := e.ruleRepo.Update(ctx, rule); err != nil {
		e.logger.Error("Failed to update rule", "error", err, "id", id)
		return nil, err
	}

	e.logger.Info("Rule updated", "id", id)
	return rule, nil
}

func (e *ruleEngineImpl) DeleteRule(ctx context.Context, workspaceID, id string) error {
	deleted, err := e.ruleRepo.Delete(ctx, workspaceID, id)
	if err != nil {
		e.logger.Error("Failed to delete rule", "error", err, "id", id)
		return err
	}
	if !deleted {
		return apperr.NotFound("rule", id)
	}
	e.logger.Info("Rule deleted", "id", id)
	return nil
}

func (e *ruleEngineImpl) GetRule(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error) {
	rule, err := e.ruleRepo.GetByID(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, apperr.NotFound("rule", id)
	}
	return rule, nil
}

func (e *ruleEngineImpl) ListRules(ctx context.Context, workspaceID, decisionType string) ([]*entity.DecisionRule, error) {
	return e.ruleRepo.List(ctx, port.RuleFilter{WorkspaceID: workspaceID, DecisionType: decisionType})
}

func (e *ruleEngineImpl) ToggleRule(ctx context.Context, workspaceID, id string) (*entity.DecisionRule, error) {
	rule, err := e.GetRule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = e.now()

	if err := e.ruleRepo.Update(ctx, rule); err != nil {
		e.logger.Error("Failed to toggle rule", "error", err, "id", id)
		return nil, err
	}

	e.logger.Info("Rule toggled", "id", id, "is_active", rule.IsActive)
	return rule, nil
}

// DuplicateRule copies a rule under a new id. The copy starts inactive with
// zeroed counters and no execution history.
func (e *ruleEngineImpl) DuplicateRule(ctx context.Context, workspaceID, id, userID, userName string) (*entity.DecisionRule, error) {
	original, err := e.GetRule(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	dup := *original
	dup.ID = uuid.NewString()
	dup.Name = original.Name + " (copie)"
	dup.IsActive = false
	dup.ExecutionCount = 0
	dup.MatchCount = 0
	dup.LastExecutedAt = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.Conditions = append([]entity.RuleCondition(nil), original.Conditions...)
	dup.NotifyRoles = append([]string(nil), original.NotifyRoles...)
	if userID != "" {
		dup.CreatedBy = userID
		dup.CreatedByName = userName
	}

	if err := e.ruleRepo.Create(ctx, &dup); err != nil {
		e.logger.Error("Failed to duplicate rule", "error", err, "id", id)
		return nil, err
	}

	e.logger.Info("Rule duplicated", "id", id, "copy_id", dup.ID)
	return &dup, nil
}

func (e *ruleEngineImpl) ListTemplates() []entity.RuleTemplate {
	return listTemplates()
}

func (e *ruleEngineImpl) CreateRuleFromTemplate(ctx context.Context, input TemplateRuleInput) (*entity.DecisionRule, error) {
	tmpl, ok := findTemplate(input.TemplateID)
	if !ok {
		return nil, apperr.NotFound("rule template", input.TemplateID)
	}

	conditions, err := instantiateConditions(tmpl, input.ConditionValues)
	if err != nil {
		return nil, err
	}

	name := input.Name
	if strings.TrimSpace(name) == "" {
		name = tmpl.Name
	}

	return e.CreateRule(ctx, RuleInput{
		WorkspaceID:       input.WorkspaceID,
		Name:              name,
		Description:       tmpl.Description,
		DecisionType:      tmpl.DecisionType,
		TriggerType:       tmpl.TriggerType,
		Conditions:        conditions,
		RecommendedAction: tmpl.RecommendedAction,
		AutoExecute:       tmpl.AutoExecute,
		RequiresApproval:  tmpl.RequiresApproval,
		Priority:          tmpl.Priority,
		TemplateID:        tmpl.ID,
		CreatedBy:         input.UserID,
		CreatedByName:     input.UserName,
	})
}

func (e *ruleEngineImpl) GetRuleExecutions(ctx context.Context, workspaceID, ruleID string, limit int) ([]*entity.RuleExecution, error) {
	if _, err := e.GetRule(ctx, workspaceID, ruleID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > e.historyLimit {
		limit = e.historyLimit
	}
	return e.executionRepo.ListByRule(ctx, ruleID, limit)
}

func (e *ruleEngineImpl) publishMatch(ctx context.Context, rule *entity.DecisionRule, referenceID string) {
	if e.dispatcher == nil {
		return
	}
	payload := map[string]interface{}{
		"rule_name":          rule.Name,
		"decision_type":      rule.DecisionType,
		"reference_id":       referenceID,
		"recommended_action": rule.RecommendedAction,
		"auto_execute":       rule.AutoExecute,
	}
	if rule.NotifyOnMatch {
		payload["notify_roles"] = rule.NotifyRoles
	}
	e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRuleMatched, rule.WorkspaceID, rule.ID, payload))
}

func validateRuleInput(input *RuleInput) error {
	if input.WorkspaceID == "" {
		return apperr.Validation("workspace id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return apperr.Validation("rule name is required")
	}
	if input.DecisionType == "" {
		return apperr.Validation("decision_type is required")
	}
	if input.TriggerType == "" {
		input.TriggerType = entity.TriggerManual
	}
	if !entity.IsValidTriggerType(input.TriggerType) {
		return apperr.Validation("invalid trigger type %q", input.TriggerType)
	}
	if input.RecommendedAction == "" {
		return apperr.Validation("recommended_action is required")
	}
	if len(input.Conditions) == 0 {
		return apperr.Validation("at least one condition is required")
	}
	return validateConditions(input.Conditions)
}

func applyRuleInput(rule *entity.DecisionRule, input RuleInput) {
	rule.Name = input.Name
	rule.Description = input.Description
	rule.DecisionType = input.DecisionType
	rule.TriggerType = input.TriggerType
	rule.Conditions = input.Conditions
	rule.RecommendedAction = input.RecommendedAction
	rule.AutoExecute = input.AutoExecute
	rule.RequiresApproval = input.RequiresApproval
	rule.Priority = input.Priority
	rule.NotifyOnMatch = input.NotifyOnMatch
	if input.NotifyRoles != nil {
		rule.NotifyRoles = input.NotifyRoles
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
}

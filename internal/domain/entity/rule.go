package entity

import "time"

// Trigger types for DecisionRule
const (
	TriggerManual    = "manual"
	TriggerOnCreate  = "on_create"
	TriggerOnUpdate  = "on_update"
	TriggerScheduled = "scheduled"
)

// IsValidTriggerType reports whether t is a known rule trigger
func IsValidTriggerType(t string) bool {
	switch t {
	case TriggerManual, TriggerOnCreate, TriggerOnUpdate, TriggerScheduled:
		return true
	}
	return false
}

// Common decision types evaluated by the rule engine
const (
	DecisionTypeExpense         = "expense"
	DecisionTypePurchaseOrder   = "purchase_order"
	DecisionTypeProductionOrder = "production_order"
	DecisionTypeStock           = "stock_replenishment"
	DecisionTypeCredit          = "credit_approval"
	DecisionTypePricing         = "price_adjustment"
)

// Condition operators
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpIn                 = "in"
	OpNotIn              = "not_in"
	OpBetween            = "between"
	OpIsEmpty            = "is_empty"
	OpIsNotEmpty         = "is_not_empty"
	OpExpression         = "expression"
)

// RuleCondition is one {field, operator, value} test against the reference data
type RuleCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// DecisionRule maps a list of conditions to a recommended action.
// All conditions must match for the rule to match.
type DecisionRule struct {
	ID                string          `json:"id"`
	WorkspaceID       string          `json:"workspace_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	DecisionType      string          `json:"decision_type"`
	TriggerType       string          `json:"trigger_type"`
	Conditions        []RuleCondition `json:"conditions"`
	RecommendedAction string          `json:"recommended_action"`
	AutoExecute       bool            `json:"auto_execute"`
	RequiresApproval  bool            `json:"requires_approval"`
	Priority          int             `json:"priority"`
	IsActive          bool            `json:"is_active"`
	NotifyOnMatch     bool            `json:"notify_on_match"`
	NotifyRoles       []string        `json:"notify_roles,omitempty"`
	TemplateID        string          `json:"template_id,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedByName     string          `json:"created_by_name,omitempty"`
	ExecutionCount    int64           `json:"execution_count"`
	MatchCount        int64           `json:"match_count"`
	LastExecutedAt    *time.Time      `json:"last_executed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TemplateCondition is a condition whose value comes from a named placeholder
type TemplateCondition struct {
	Field        string      `json:"field"`
	Operator     string      `json:"operator"`
	Placeholder  string      `json:"placeholder"`
	DefaultValue interface{} `json:"default_value,omitempty"`
}

// RuleTemplate is a predefined rule skeleton
type RuleTemplate struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	DecisionType      string              `json:"decision_type"`
	TriggerType       string              `json:"trigger_type"`
	Conditions        []TemplateCondition `json:"conditions"`
	RecommendedAction string              `json:"recommended_action"`
	AutoExecute       bool                `json:"auto_execute"`
	RequiresApproval  bool                `json:"requires_approval"`
	Priority          int                 `json:"priority"`
}

// RuleExecution records the evaluation of one rule against one context
type RuleExecution struct {
	ID                string          `json:"id"`
	RuleID            string          `json:"rule_id"`
	WorkspaceID       string          `json:"workspace_id"`
	DecisionType      string          `json:"decision_type"`
	ReferenceID       string          `json:"reference_id"`
	ConditionsMatched bool            `json:"conditions_matched"`
	MatchedConditions []RuleCondition `json:"matched_conditions"`
	RecommendedAction string          `json:"recommended_action,omitempty"`
	ExecutionTimeMs   float64         `json:"execution_time_ms"`
	ExecutedAt        time.Time       `json:"executed_at"`
}

// Recommendation is the action proposed by a matched rule
type Recommendation struct {
	RuleID           string   `json:"rule_id"`
	RuleName         string   `json:"rule_name"`
	Action           string   `json:"action"`
	AutoExecute      bool     `json:"auto_execute"`
	RequiresApproval bool     `json:"requires_approval"`
	Priority         int      `json:"priority"`
	NotifyRoles      []string `json:"notify_roles,omitempty"`
}

// RuleExecutionResult is the outcome of evaluating every active rule for a context
type RuleExecutionResult struct {
	MatchedRules    []*DecisionRule  `json:"matched_rules"`
	Recommendations []Recommendation `json:"recommendations"`
	Executions      []*RuleExecution `json:"executions"`
}

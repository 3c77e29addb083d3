package service

import (
	"github.com/garyjia/validation-workflow/internal/domain/apperr"
	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// builtinTemplates is the read-only catalog offered to every workspace
var builtinTemplates = []entity.RuleTemplate{
	{
		ID:           "high-value-expense",
		Name:         "Dépense élevée",
		Description:  "Require a manager approval for expenses above a limit",
		DecisionType: entity.DecisionTypeExpense,
		TriggerType:  entity.TriggerOnCreate,
		Conditions: []entity.TemplateCondition{
			{Field: "amount", Operator: entity.OpGreaterThan, Placeholder: "amount_limit", DefaultValue: 500000.0},
		},
		RecommendedAction: "require_manager_approval",
		RequiresApproval:  true,
		Priority:          80,
	},
	{
		ID:           "new-supplier-purchase",
		Name:         "Achat chez un nouveau fournisseur",
		Description:  "Review purchase orders placed with a supplier that has no history",
		DecisionType: entity.DecisionTypePurchaseOrder,
		TriggerType:  entity.TriggerOnCreate,
		Conditions: []entity.TemplateCondition{
			{Field: "supplier.is_new", Operator: entity.OpEquals, Placeholder: "is_new", DefaultValue: true},
			{Field: "amount", Operator: entity.OpGreaterThanOrEqual, Placeholder: "min_amount", DefaultValue: 100000.0},
		},
		RecommendedAction: "request_supplier_review",
		RequiresApproval:  true,
		Priority:          60,
	},
	{
		ID:           "low-stock-replenishment",
		Name:         "Réapprovisionnement automatique",
		Description:  "Propose a purchase order when stock falls to the reorder point",
		DecisionType: entity.DecisionTypeStock,
		TriggerType:  entity.TriggerOnUpdate,
		Conditions: []entity.TemplateCondition{
			{Field: "stock.quantity", Operator: entity.OpLessThanOrEqual, Placeholder: "reorder_point"},
		},
		RecommendedAction: "create_purchase_order",
		AutoExecute:       true,
		Priority:          50,
	},
	{
		ID:           "credit-limit-exceeded",
		Name:         "Dépassement de crédit",
		Description:  "Block credit sales when the outstanding balance exceeds the customer limit",
		DecisionType: entity.DecisionTypeCredit,
		TriggerType:  entity.TriggerOnCreate,
		Conditions: []entity.TemplateCondition{
			{Field: "customer.outstanding_balance", Operator: entity.OpGreaterThan, Placeholder: "credit_limit"},
		},
		RecommendedAction: "block_credit",
		RequiresApproval:  true,
		Priority:          90,
	},
	{
		ID:           "low-margin-price",
		Name:         "Marge insuffisante",
		Description:  "Flag price adjustments that push the margin under a floor",
		DecisionType: entity.DecisionTypePricing,
		TriggerType:  entity.TriggerOnUpdate,
		Conditions: []entity.TemplateCondition{
			{Field: "margin_percent", Operator: entity.OpLessThan, Placeholder: "min_margin", DefaultValue: 10.0},
		},
		RecommendedAction: "require_pricing_approval",
		RequiresApproval:  true,
		Priority:          70,
	},
	{
		ID:           "rush-production-order",
		Name:         "Ordre de production urgent",
		Description:  "Schedule overtime for urgent production orders",
		DecisionType: entity.DecisionTypeProductionOrder,
		TriggerType:  entity.TriggerOnCreate,
		Conditions: []entity.TemplateCondition{
			{Field: "priority", Operator: entity.OpIn, Placeholder: "priorities", DefaultValue: []interface{}{"high", "urgent"}},
		},
		RecommendedAction: "schedule_overtime",
		Priority:          40,
	},
}

func listTemplates() []entity.RuleTemplate {
	out := make([]entity.RuleTemplate, len(builtinTemplates))
	for i, t := range builtinTemplates {
		out[i] = cloneTemplate(t)
	}
	return out
}

func findTemplate(id string) (entity.RuleTemplate, bool) {
	for _, t := range builtinTemplates {
		if t.ID == id {
			return cloneTemplate(t), true
		}
	}
	return entity.RuleTemplate{}, false
}

// cloneTemplate copies a catalog entry so callers never share its slices
func cloneTemplate(t entity.RuleTemplate) entity.RuleTemplate {
	conditions := make([]entity.TemplateCondition, len(t.Conditions))
	for i, c := range t.Conditions {
		c.DefaultValue = cloneValue(c.DefaultValue)
		conditions[i] = c
	}
	t.Conditions = conditions
	return t
}

// cloneValue deep-copies the JSON-shaped values used as condition operands
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// instantiateConditions fills each placeholder from values, falling back to
// the template default
func instantiateConditions(t entity.RuleTemplate, values map[string]interface{}) ([]entity.RuleCondition, error) {
	conditions := make([]entity.RuleCondition, 0, len(t.Conditions))
	for _, tc := range t.Conditions {
		value, ok := values[tc.Placeholder]
		if !ok || value == nil {
			if tc.DefaultValue == nil {
				return nil, apperr.Validation("missing value for placeholder %q", tc.Placeholder)
			}
			value = cloneValue(tc.DefaultValue)
		}
		conditions = append(conditions, entity.RuleCondition{
			Field:    tc.Field,
			Operator: tc.Operator,
			Value:    value,
		})
	}
	return conditions, nil
}

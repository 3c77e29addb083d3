package entity

import (
	"fmt"
	"time"
)

// ValidationThreshold holds the monetary boundaries that decide how many
// approval levels a request needs. An empty Category is the generic policy
// for the entity type.
type ValidationThreshold struct {
	ID               string     `json:"id"`
	WorkspaceID      string     `json:"workspace_id"`
	EntityType       EntityType `json:"entity_type"`
	Category         string     `json:"category,omitempty"`
	Level1Threshold  float64    `json:"level1_threshold"`
	Level2Threshold  float64    `json:"level2_threshold"`
	Level3Threshold  float64    `json:"level3_threshold"`
	AutoApproveBelow float64    `json:"auto_approve_below"`
	RequireAllLevels bool       `json:"require_all_levels"`
	Currency         string     `json:"currency"`
	Description      string     `json:"description,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedBy        string     `json:"created_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ValidateOrdering checks 0 <= autoApproveBelow <= level1 <= level2 <= level3
func (t *ValidationThreshold) ValidateOrdering() error {
	if t.AutoApproveBelow < 0 || t.Level1Threshold < 0 || t.Level2Threshold < 0 || t.Level3Threshold < 0 {
		return fmt.Errorf("threshold amounts must be non-negative")
	}
	if t.AutoApproveBelow > t.Level1Threshold {
		return fmt.Errorf("auto_approve_below (%.2f) must not exceed level1_threshold (%.2f)", t.AutoApproveBelow, t.Level1Threshold)
	}
	if t.Level1Threshold > t.Level2Threshold {
		return fmt.Errorf("level1_threshold (%.2f) must not exceed level2_threshold (%.2f)", t.Level1Threshold, t.Level2Threshold)
	}
	if t.Level2Threshold > t.Level3Threshold {
		return fmt.Errorf("level2_threshold (%.2f) must not exceed level3_threshold (%.2f)", t.Level2Threshold, t.Level3Threshold)
	}
	return nil
}

// ThresholdPatch is a partial update. Nil fields are left untouched.
type ThresholdPatch struct {
	Category         *string  `json:"category,omitempty"`
	Level1Threshold  *float64 `json:"level1_threshold,omitempty"`
	Level2Threshold  *float64 `json:"level2_threshold,omitempty"`
	Level3Threshold  *float64 `json:"level3_threshold,omitempty"`
	AutoApproveBelow *float64 `json:"auto_approve_below,omitempty"`
	RequireAllLevels *bool    `json:"require_all_levels,omitempty"`
	Currency         *string  `json:"currency,omitempty"`
	Description      *string  `json:"description,omitempty"`
	IsActive         *bool    `json:"is_active,omitempty"`
}

// Apply copies the set fields of the patch onto t
func (p ThresholdPatch) Apply(t *ValidationThreshold) {
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Level1Threshold != nil {
		t.Level1Threshold = *p.Level1Threshold
	}
	if p.Level2Threshold != nil {
		t.Level2Threshold = *p.Level2Threshold
	}
	if p.Level3Threshold != nil {
		t.Level3Threshold = *p.Level3Threshold
	}
	if p.AutoApproveBelow != nil {
		t.AutoApproveBelow = *p.AutoApproveBelow
	}
	if p.RequireAllLevels != nil {
		t.RequireAllLevels = *p.RequireAllLevels
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}

// ThresholdIssue reports a stored threshold that breaks the ordering invariant
type ThresholdIssue struct {
	ThresholdID string     `json:"threshold_id"`
	EntityType  EntityType `json:"entity_type"`
	Category    string     `json:"category,omitempty"`
	Error       string     `json:"error"`
}

// ThresholdUsageStats aggregates the requests created under one threshold
type ThresholdUsageStats struct {
	ThresholdID   string     `json:"threshold_id"`
	EntityType    EntityType `json:"entity_type"`
	Category      string     `json:"category,omitempty"`
	TotalRequests int        `json:"total_requests"`
	AutoApproved  int        `json:"auto_approved"`
	Pending       int        `json:"pending"`
	Approved      int        `json:"approved"`
	Rejected      int        `json:"rejected"`
	TotalAmount   float64    `json:"total_amount"`
	AverageAmount float64    `json:"average_amount"`
}

// Resolution is the policy picked for one request
type Resolution struct {
	RequiredLevel ValidationLevel      `json:"required_level"`
	AutoApproved  bool                 `json:"auto_approved"`
	Threshold     *ValidationThreshold `json:"threshold"`
}

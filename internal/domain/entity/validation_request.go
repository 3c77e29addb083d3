package entity

import "time"

// ValidationRequest wraps one business entity awaiting sign-off.
//
// RequiredLevel and RequireAllLevels are a snapshot of the policy at creation
// time; later threshold changes never alter a request already in flight.
type ValidationRequest struct {
	ID               string                 `json:"id"`
	WorkspaceID      string                 `json:"workspace_id"`
	EntityType       EntityType             `json:"entity_type"`
	EntityID         string                 `json:"entity_id"`
	EntityData       map[string]interface{} `json:"entity_data,omitempty"`
	Category         string                 `json:"category,omitempty"`
	Amount           float64                `json:"amount"`
	RequestedBy      string                 `json:"requested_by"`
	RequestedAt      time.Time              `json:"requested_at"`
	RequestReason    string                 `json:"request_reason,omitempty"`
	Priority         string                 `json:"priority"`
	Tags             []string               `json:"tags,omitempty"`
	Status           ValidationStatus       `json:"status"`
	CurrentLevel     ValidationLevel        `json:"current_level,omitempty"`
	RequiredLevel    ValidationLevel        `json:"required_level"`
	RequireAllLevels bool                   `json:"require_all_levels"`
	ThresholdID      string                 `json:"threshold_id,omitempty"`
	FinalizedAt      *time.Time             `json:"finalized_at,omitempty"`
	Version          int64                  `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`

	// Decisions is only populated by history reads
	Decisions []*ValidationDecision `json:"decisions,omitempty"`
}

// ValidationDecision is one immutable approve/reject action by a validator
type ValidationDecision struct {
	ID              string           `json:"id"`
	RequestID       string           `json:"request_id"`
	WorkspaceID     string           `json:"workspace_id"`
	Level           ValidationLevel  `json:"level"`
	ValidatedBy     string           `json:"validated_by"`
	Status          DecisionStatus   `json:"status"`
	Comment         string           `json:"comment,omitempty"`
	Geolocation     string           `json:"geolocation,omitempty"`
	IPAddress       string           `json:"ip_address,omitempty"`
	UserAgent       string           `json:"user_agent,omitempty"`
	SignatureData   string           `json:"signature_data,omitempty"`
	PreviousStatus  ValidationStatus `json:"previous_status"`
	ResultingStatus ValidationStatus `json:"resulting_status"`
	DecidedAt       time.Time        `json:"decided_at"`
}

// ValidatorStats summarises the decisions of one validator over a period
type ValidatorStats struct {
	WorkspaceID          string    `json:"workspace_id"`
	ValidatorID          string    `json:"validator_id"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	TotalDecisions       int       `json:"total_decisions"`
	Approvals            int       `json:"approvals"`
	Rejections           int       `json:"rejections"`
	ApprovalRate         float64   `json:"approval_rate"`
	AverageDecisionHours float64   `json:"average_decision_hours"`
}

// WorkflowStats summarises every request of a workspace
type WorkflowStats struct {
	WorkspaceID          string                   `json:"workspace_id"`
	TotalRequests        int                      `json:"total_requests"`
	ByStatus             map[ValidationStatus]int `json:"by_status"`
	PendingTotal         int                      `json:"pending_total"`
	ApprovalRate         float64                  `json:"approval_rate"`
	AutoApprovalRate     float64                  `json:"auto_approval_rate"`
	AverageFinalizeHours float64                  `json:"average_finalize_hours"`
}

package entity

// EntityType identifies the kind of business object submitted for validation
type EntityType string

const (
	EntityTypeExpense         EntityType = "expense"
	EntityTypePurchaseOrder   EntityType = "purchase_order"
	EntityTypeProductionOrder EntityType = "production_order"
	EntityTypeAdvance         EntityType = "advance"
	EntityTypeDebt            EntityType = "debt"
	EntityTypeLeave           EntityType = "leave"
	EntityTypeTransfer        EntityType = "transfer"
	EntityTypePriceAdjustment EntityType = "price_adjustment"
	EntityTypeCreditApproval  EntityType = "credit_approval"
)

// EntityTypes lists every supported entity type in declaration order
var EntityTypes = []EntityType{
	EntityTypeExpense,
	EntityTypePurchaseOrder,
	EntityTypeProductionOrder,
	EntityTypeAdvance,
	EntityTypeDebt,
	EntityTypeLeave,
	EntityTypeTransfer,
	EntityTypePriceAdjustment,
	EntityTypeCreditApproval,
}

// IsValid returns true if the entity type is one of the supported types
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeExpense,
		EntityTypePurchaseOrder,
		EntityTypeProductionOrder,
		EntityTypeAdvance,
		EntityTypeDebt,
		EntityTypeLeave,
		EntityTypeTransfer,
		EntityTypePriceAdjustment,
		EntityTypeCreditApproval:
		return true
	}
	return false
}

func (t EntityType) String() string {
	return string(t)
}

// ValidationLevel is an approval stage with increasing authority
type ValidationLevel string

const (
	LevelOne   ValidationLevel = "level_1"
	LevelTwo   ValidationLevel = "level_2"
	LevelThree ValidationLevel = "level_3"
	LevelOwner ValidationLevel = "owner"
)

// Rank returns 1..4 for valid levels and 0 otherwise
func (l ValidationLevel) Rank() int {
	switch l {
	case LevelOne:
		return 1
	case LevelTwo:
		return 2
	case LevelThree:
		return 3
	case LevelOwner:
		return 4
	}
	return 0
}

// IsValid returns true if the level is a known validation level
func (l ValidationLevel) IsValid() bool {
	return l.Rank() > 0
}

// Next returns the level following l. The owner level has no successor.
func (l ValidationLevel) Next() (ValidationLevel, bool) {
	switch l {
	case LevelOne:
		return LevelTwo, true
	case LevelTwo:
		return LevelThree, true
	case LevelThree:
		return LevelOwner, true
	}
	return "", false
}

// PendingStatus returns the pending status awaiting this level
func (l ValidationLevel) PendingStatus() ValidationStatus {
	switch l {
	case LevelOne:
		return StatusPendingLevel1
	case LevelTwo:
		return StatusPendingLevel2
	case LevelThree:
		return StatusPendingLevel3
	case LevelOwner:
		return StatusPendingOwner
	}
	return ""
}

func (l ValidationLevel) String() string {
	return string(l)
}

// ValidationStatus is the lifecycle status of a validation request
type ValidationStatus string

const (
	StatusPendingLevel1 ValidationStatus = "pending_level_1"
	StatusPendingLevel2 ValidationStatus = "pending_level_2"
	StatusPendingLevel3 ValidationStatus = "pending_level_3"
	StatusPendingOwner  ValidationStatus = "pending_owner"
	StatusApproved      ValidationStatus = "approved"
	StatusRejected      ValidationStatus = "rejected"
	StatusAutoApproved  ValidationStatus = "auto_approved"
)

// ValidationStatuses lists every status in lifecycle order
var ValidationStatuses = []ValidationStatus{
	StatusPendingLevel1,
	StatusPendingLevel2,
	StatusPendingLevel3,
	StatusPendingOwner,
	StatusApproved,
	StatusRejected,
	StatusAutoApproved,
}

// IsTerminal returns true if no further decision can be recorded
func (s ValidationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusAutoApproved
}

// IsPending returns true for the pending_* statuses
func (s ValidationStatus) IsPending() bool {
	return s.Level() != ""
}

// Level returns the level awaited by a pending status, or "" otherwise
func (s ValidationStatus) Level() ValidationLevel {
	switch s {
	case StatusPendingLevel1:
		return LevelOne
	case StatusPendingLevel2:
		return LevelTwo
	case StatusPendingLevel3:
		return LevelThree
	case StatusPendingOwner:
		return LevelOwner
	}
	return ""
}

// IsValid returns true if the status is a known validation status
func (s ValidationStatus) IsValid() bool {
	return s.IsPending() || s.IsTerminal()
}

func (s ValidationStatus) String() string {
	return string(s)
}

// DecisionStatus is the outcome chosen by a validator
type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
)

// IsValid returns true for approved and rejected
func (d DecisionStatus) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Priority constants for ValidationRequest
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// IsValidPriority reports whether p is a known request priority
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Default currency for thresholds created without one
const DefaultCurrency = "XOF"

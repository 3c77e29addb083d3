package event

// Type identifies the type of domain event
type Type string

const (
	TypeValidationRequested    Type = "validation.requested"
	TypeValidationAutoApproved Type = "validation.auto_approved"
	TypeValidationEscalated    Type = "validation.escalated"
	TypeValidationApproved     Type = "validation.approved"
	TypeValidationRejected     Type = "validation.rejected"
	TypeRuleMatched            Type = "rule.matched"
	TypeThresholdChanged       Type = "threshold.changed"
)

// Types lists every defined event type
var Types = []Type{
	TypeValidationRequested,
	TypeValidationAutoApproved,
	TypeValidationEscalated,
	TypeValidationApproved,
	TypeValidationRejected,
	TypeRuleMatched,
	TypeThresholdChanged,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

package workflow

import "github.com/garyjia/validation-workflow/internal/domain/entity"

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor maps a validator decision to its trigger
func TriggerFor(d entity.DecisionStatus) (Trigger, bool) {
	switch d {
	case entity.DecisionApproved:
		return TriggerApprove, true
	case entity.DecisionRejected:
		return TriggerReject, true
	}
	return "", false
}

package workflow

import "github.com/garyjia/validation-workflow/internal/domain/entity"

// State is a validation request status as seen by the state machine
type State = entity.ValidationStatus

const (
	StatePendingLevel1 = entity.StatusPendingLevel1
	StatePendingLevel2 = entity.StatusPendingLevel2
	StatePendingLevel3 = entity.StatusPendingLevel3
	StatePendingOwner  = entity.StatusPendingOwner
	StateApproved      = entity.StatusApproved
	StateRejected      = entity.StatusRejected
	StateAutoApproved  = entity.StatusAutoApproved
)

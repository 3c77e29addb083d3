package workflow

import (
	"context"

	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

// Policy is the approval depth a request was created with
type Policy struct {
	RequiredLevel    entity.ValidationLevel
	RequireAllLevels bool
}

type policyKey struct{}

// WithPolicy attaches the request policy consulted by escalation guards
func WithPolicy(ctx context.Context, p Policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

func policyFrom(ctx context.Context) (Policy, bool) {
	p, ok := ctx.Value(policyKey{}).(Policy)
	return p, ok
}

// escalates passes when approving at level `from` must hand over to the next level
func escalates(from entity.ValidationLevel) GuardFunc {
	return func(ctx context.Context) bool {
		p, ok := policyFrom(ctx)
		if !ok || !p.RequireAllLevels {
			return false
		}
		return from.Rank() < p.RequiredLevel.Rank()
	}
}

var validationBuilder = newValidationBuilder()

func newValidationBuilder() StateMachineBuilder {
	builder := NewBuilder()

	builder.Configure(StatePendingLevel1).
		PermitIf(TriggerApprove, StatePendingLevel2, escalates(entity.LevelOne)).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StatePendingLevel2).
		PermitIf(TriggerApprove, StatePendingLevel3, escalates(entity.LevelTwo)).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StatePendingLevel3).
		PermitIf(TriggerApprove, StatePendingOwner, escalates(entity.LevelThree)).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	builder.Configure(StatePendingOwner).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return builder
}

// NewValidationMachine returns a machine positioned at the given status
func NewValidationMachine(current State) StateMachine {
	return validationBuilder.Build(current)
}

// InitialState returns the status a freshly created request starts in.
// With RequireAllLevels the request walks up from level 1, otherwise it
// waits directly on the required level.
func InitialState(autoApproved bool, p Policy) State {
	if autoApproved {
		return StateAutoApproved
	}
	if p.RequireAllLevels {
		return StatePendingLevel1
	}
	if s := p.RequiredLevel.PendingStatus(); s != "" {
		return s
	}
	return StatePendingLevel1
}

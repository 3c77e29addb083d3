package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/validation-workflow/internal/domain/entity"
)

func TestTrigger_String(t *testing.T) {
	if got := TriggerApprove.String(); got != "APPROVE" {
		t.Errorf("Trigger.String() = %v, want %v", got, "APPROVE")
	}
}

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		decision entity.DecisionStatus
		want     Trigger
		ok       bool
	}{
		{entity.DecisionApproved, TriggerApprove, true},
		{entity.DecisionRejected, TriggerReject, true},
		{entity.DecisionStatus("maybe"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			got, ok := TriggerFor(tt.decision)
			if got != tt.want || ok != tt.ok {
				t.Errorf("TriggerFor() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePendingLevel1)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	// A second Configure of the same state extends the same edge list
	config.Permit(TriggerReject, StateRejected)
	builder.Configure(StatePendingLevel1).Permit(TriggerApprove, StateApproved)

	sm := builder.Build(StatePendingLevel1)
	if !sm.CanFire(context.Background(), TriggerReject) {
		t.Error("edge added through the first configuration was lost")
	}
	if err := sm.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if sm.State() != StateApproved {
		t.Errorf("State() = %v, want %v", sm.State(), StateApproved)
	}
}

func TestBuilder_ConfigureInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() with invalid state should panic")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() with invalid initial state should panic")
		}
	}()

	NewBuilder().Build(State(""))
}

func TestStateMachine_Fire(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).Permit(TriggerApprove, StateApproved)

	sm := builder.Build(StatePendingLevel1)
	if err := sm.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if sm.State() != StateApproved {
		t.Errorf("State() = %v, want %v", sm.State(), StateApproved)
	}
}

func TestStateMachine_FireInvalidTrigger(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).Permit(TriggerApprove, StateApproved)

	sm := builder.Build(StatePendingLevel1)
	err := sm.Fire(context.Background(), TriggerReject)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if sm.State() != StatePendingLevel1 {
		t.Errorf("State() changed to %v after failed transition", sm.State())
	}
}

func TestStateMachine_FireFromUnconfiguredState(t *testing.T) {
	sm := NewBuilder().Build(StateApproved)

	if err := sm.Fire(context.Background(), TriggerApprove); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if sm.CanFire(context.Background(), TriggerReject) {
		t.Error("CanFire() = true from a state without edges")
	}
}

func TestStateMachine_GuardFailed(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).
		PermitIf(TriggerApprove, StatePendingLevel2, func(ctx context.Context) bool { return false })

	sm := builder.Build(StatePendingLevel1)
	if err := sm.Fire(context.Background(), TriggerApprove); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if sm.CanFire(context.Background(), TriggerApprove) {
		t.Error("CanFire() = true with failing guard")
	}
	if sm.State() != StatePendingLevel1 {
		t.Errorf("State() changed to %v after refused guard", sm.State())
	}
}

func TestStateMachine_TargetDoesNotMove(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel2).Permit(TriggerReject, StateRejected)

	sm := builder.Build(StatePendingLevel2)
	to, err := sm.Target(context.Background(), TriggerReject)
	if err != nil {
		t.Fatalf("Target() unexpected error: %v", err)
	}
	if to != StateRejected || sm.State() != StatePendingLevel2 {
		t.Errorf("Target() = %v, State() = %v", to, sm.State())
	}
}

func TestBuilder_BuildSnapshotsEdges(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).Permit(TriggerApprove, StateApproved)
	sm := builder.Build(StatePendingLevel1)

	builder.Configure(StatePendingLevel1).Permit(TriggerReject, StateRejected)
	if sm.CanFire(context.Background(), TriggerReject) {
		t.Error("edge added after Build leaked into the built machine")
	}
}

func TestStateMachine_FirstPassingGuardWins(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).
		PermitIf(TriggerApprove, StatePendingLevel2, func(ctx context.Context) bool { return false }).
		PermitIf(TriggerApprove, StatePendingOwner, func(ctx context.Context) bool { return true }).
		Permit(TriggerApprove, StateApproved)

	sm := builder.Build(StatePendingLevel1)
	if err := sm.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if sm.State() != StatePendingOwner {
		t.Errorf("State() = %v, want %v", sm.State(), StatePendingOwner)
	}
}

func TestStateMachine_BuildIsolatesInstances(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingLevel1).Permit(TriggerApprove, StateApproved)

	first := builder.Build(StatePendingLevel1)
	second := builder.Build(StatePendingLevel1)

	if err := first.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() unexpected error: %v", err)
	}
	if second.State() != StatePendingLevel1 {
		t.Errorf("second machine moved to %v", second.State())
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means the state has no edge for the trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed means edges exist but every guard refused
	ErrGuardFailed = errors.New("guard condition failed")
)

// StateMachine holds one request's status and moves it along the
// configured edges
type StateMachine interface {
	State() State

	// CanFire reports whether Fire would succeed without moving the machine
	CanFire(ctx context.Context, trigger Trigger) bool

	// Target returns the state Fire would move to
	Target(ctx context.Context, trigger Trigger) (State, error)

	// Fire moves to the target state; on error the state is unchanged
	Fire(ctx context.Context, trigger Trigger) error
}

type stateMachine struct {
	current State
	edges   edgeTable
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.Target(ctx, trigger)
	return err == nil
}

// Target tries the edges registered for trigger in order; the first one
// whose guard passes wins
func (m *stateMachine) Target(ctx context.Context, trigger Trigger) (State, error) {
	candidates := m.edges[m.current][trigger]
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, e := range candidates {
		if e.guard == nil || e.guard(ctx) {
			return e.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	next, err := m.Target(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

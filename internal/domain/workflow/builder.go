package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether an edge may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects edges and stamps out machines
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration

	// Build snapshots the edges configured so far; later Configure calls
	// do not affect machines already built
	Build(initial State) StateMachine
}

// StateConfiguration adds outgoing edges to one state
type StateConfiguration interface {
	Permit(trigger Trigger, to State) StateConfiguration
	PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

// edgeTable lists, per state and trigger, the edges in registration order
type edgeTable map[State]map[Trigger][]edge

type builder struct {
	edges edgeTable
}

type stateEdges map[Trigger][]edge

// NewBuilder returns an empty builder. Unknown states panic, since edge
// tables are wired at init time.
func NewBuilder() StateMachineBuilder {
	return &builder{edges: edgeTable{}}
}

func (b *builder) Configure(state State) StateConfiguration {
	mustBeValid("state", state)

	if b.edges[state] == nil {
		b.edges[state] = map[Trigger][]edge{}
	}
	return stateEdges(b.edges[state])
}

func (b *builder) Build(initial State) StateMachine {
	mustBeValid("initial state", initial)

	snapshot := make(edgeTable, len(b.edges))
	for state, byTrigger := range b.edges {
		copied := make(map[Trigger][]edge, len(byTrigger))
		for trigger, list := range byTrigger {
			copied[trigger] = append([]edge(nil), list...)
		}
		snapshot[state] = copied
	}

	return &stateMachine{current: initial, edges: snapshot}
}

func (s stateEdges) Permit(trigger Trigger, to State) StateConfiguration {
	return s.PermitIf(trigger, to, nil)
}

func (s stateEdges) PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration {
	mustBeValid("target state", to)
	s[trigger] = append(s[trigger], edge{to: to, guard: guard})
	return s
}

func mustBeValid(what string, s State) {
	if !s.IsValid() {
		panic(fmt.Sprintf("workflow: invalid %s %q", what, s))
	}
}

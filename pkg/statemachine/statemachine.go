package statemachine

import (
	"context"
	"fmt"
)

// State is a named position in the machine.
type State interface {
	Name() string
}

// Event triggers a transition.
type Event interface {
	Name() string
}

// Action runs while a transition is applied. An error aborts the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard decides at runtime whether a transition may be taken.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition moves From to To on Event when every guard passes.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// StringState is a State backed by a string.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event backed by a string.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }

// Machine is an immutable transition table. It keeps no current state: the
// caller passes the state its record is in, so one Machine serves every
// record and is safe for concurrent use.
type Machine struct {
	// from -> event -> candidates, tried in registration order
	transitions map[string]map[string][]Transition
}

// Option adds transitions while building a Machine.
type Option func(*Machine) error

// TransitionOption attaches guards or actions to one transition.
type TransitionOption func(*Transition)

// New builds a Machine from opts.
func New(opts ...Option) (*Machine, error) {
	m := &Machine{transitions: make(map[string]map[string][]Transition)}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New for package-level tables; it panics on a bad definition.
func MustNew(opts ...Option) *Machine {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers from -> to on event.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		if from == nil || to == nil || event == nil {
			return ErrInvalidTransition
		}
		t := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		byEvent, ok := m.transitions[from.Name()]
		if !ok {
			byEvent = make(map[string][]Transition)
			m.transitions[from.Name()] = byEvent
		}
		byEvent[event.Name()] = append(byEvent[event.Name()], t)
		return nil
	}
}

// WithGuard adds a guard. Nil is ignored.
func WithGuard(g Guard) TransitionOption {
	return func(t *Transition) {
		if g != nil {
			t.Guards = append(t.Guards, g)
		}
	}
}

// WithAction adds an action. Nil is ignored.
func WithAction(a Action) TransitionOption {
	return func(t *Transition) {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
}

// Fire takes the first transition out of current on event whose guards pass,
// runs its actions in order and returns the new state. It returns
// *ErrNoTransitionAvailable when nothing is registered for the pair and
// *ErrTransitionRejected when every candidate was guarded off.
func (m *Machine) Fire(ctx context.Context, current State, event Event, data any) (State, error) {
	if current == nil || event == nil {
		return current, ErrInvalidEvent
	}
	t, err := m.pick(ctx, current, event, data)
	if err != nil {
		return current, err
	}
	for _, action := range t.Actions {
		if err := action(ctx, current, t.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}
	return t.To, nil
}

// CanFire reports whether Fire would find a transition.
func (m *Machine) CanFire(ctx context.Context, current State, event Event, data any) bool {
	if current == nil || event == nil {
		return false
	}
	_, err := m.pick(ctx, current, event, data)
	return err == nil
}

func (m *Machine) pick(ctx context.Context, current State, event Event, data any) (Transition, error) {
	candidates := m.transitions[current.Name()][event.Name()]
	if len(candidates) == 0 {
		return Transition{}, &ErrNoTransitionAvailable{StateName: current.Name(), EventName: event.Name()}
	}
next:
	for _, t := range candidates {
		for _, g := range t.Guards {
			if !g(ctx, current, event, data) {
				continue next
			}
		}
		return t, nil
	}
	return Transition{}, &ErrTransitionRejected{StateName: current.Name(), EventName: event.Name()}
}

package notifications

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/statemachine"
)

// State is the lifecycle position of a notification.
type State string

const (
	StateUnread   State = "unread"
	StateRead     State = "read"
	StateArchived State = "archived"
)

func (s State) Name() string { return string(s) }

// Action is a lifecycle transition trigger.
type Action string

const (
	ActionRead    Action = "read"
	ActionArchive Action = "archive"
)

func (a Action) Name() string { return string(a) }

// transitionData is what lifecycle actions receive.
type transitionData struct {
	n   *Notification
	now time.Time
}

func stampRead(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	d := data.(*transitionData)
	d.n.IsRead = true
	d.n.ReadAt = &d.now
	return nil
}

func stampArchived(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	d := data.(*transitionData)
	d.n.IsArchived = true
	d.n.ArchivedAt = &d.now
	return nil
}

// lifecycle has no transition out of archived, and none into the state a
// notification is already in; both surface as ErrNoTransitionAvailable.
var lifecycle = statemachine.MustNew(
	statemachine.WithTransition(StateUnread, StateRead, ActionRead, statemachine.WithAction(stampRead)),
	statemachine.WithTransition(StateUnread, StateArchived, ActionArchive, statemachine.WithAction(stampArchived)),
	statemachine.WithTransition(StateRead, StateArchived, ActionArchive, statemachine.WithAction(stampArchived)),
)

// State reports the lifecycle state of n. Archived wins over read/unread.
func (n Notification) State() State {
	switch {
	case n.IsArchived:
		return StateArchived
	case n.IsRead:
		return StateRead
	default:
		return StateUnread
	}
}

// Apply performs action on n at now and reports whether n changed. An action
// with no transition from the current state is a successful no-op.
func (n *Notification) Apply(action Action, now time.Time) bool {
	_, err := lifecycle.Fire(context.Background(), n.State(), action, &transitionData{n: n, now: now})
	switch {
	case err == nil:
		return true
	case statemachine.IsNoTransitionAvailableError(err):
		return false
	default:
		// Lifecycle transitions carry no guards and their actions cannot fail.
		panic(err)
	}
}

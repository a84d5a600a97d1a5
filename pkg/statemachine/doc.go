// Package statemachine defines finite state machines as immutable transition
// tables with guards and actions.
//
// A Machine does not remember a current state. The caller passes the state
// its record is in and stores the state Fire returns, which lets one
// package-level Machine drive every notification:
//
//	var lifecycle = statemachine.MustNew(
//	    statemachine.WithTransition(unread, read, markRead, statemachine.WithAction(setReadAt)),
//	    statemachine.WithTransition(unread, archived, archive),
//	    statemachine.WithTransition(read, archived, archive),
//	)
//
//	next, err := lifecycle.Fire(ctx, current, markRead, record)
//	if statemachine.IsNoTransitionAvailableError(err) {
//	    // already there, or terminal
//	}
//
// Candidates for the same state and event are tried in registration order;
// the first whose guards all pass wins. Actions run in order and any error
// aborts the transition.
package statemachine

package livepush

import "errors"

var (
	ErrHubClosed    = errors.New("livepush: hub closed")
	ErrMissingUser  = errors.New("livepush: missing user id")
	ErrSlowConsumer = errors.New("livepush: session send buffer full")
)

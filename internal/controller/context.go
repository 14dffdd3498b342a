package controller

import "context"

type contextKey int

const (
	connStateCtxKey contextKey = iota
)

// connState is owned by the read goroutine of one connection.
type connState struct {
	participantID string
	roomKey       string
}

func (s *connState) joined() bool {
	return s.participantID != ""
}

func (c controller) getConnStateFromCtx(ctx context.Context) *connState {
	state, ok := ctx.Value(connStateCtxKey).(*connState)
	if !ok {
		return &connState{}
	}

	return state
}

// internal/session/machine.go
package session

import (
	"context"
	"errors"
)

// ErrIllegalTransition is reported when an event is not legal in the
// user's current state. The state is left unchanged.
var ErrIllegalTransition = errors.New("event is not legal in the current state")

// Store persists one State per user. Absent users are idle.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, st State) error
	Clear(ctx context.Context, userID int64) error
}

// Machine is the single source of truth for which inputs are legal for
// a user right now.
type Machine struct {
	store Store
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// Current returns the user's active state, Idle if none is recorded.
func (m *Machine) Current(ctx context.Context, userID int64) (State, error) {
	return m.store.Get(ctx, userID)
}

// Transition applies ev if it is legal from the current state and
// persists the result. On an illegal event the state is untouched and
// ErrIllegalTransition is returned along with the unchanged state.
func (m *Machine) Transition(ctx context.Context, userID int64, ev Event) (State, error) {
	cur, err := m.store.Get(ctx, userID)
	if err != nil {
		return cur, err
	}

	next, ok := Next(cur, ev)
	if !ok {
		return cur, ErrIllegalTransition
	}

	if next.Kind == KindIdle {
		// Keep the store compact: idle is the absence of state.
		if err := m.store.Clear(ctx, userID); err != nil {
			return cur, err
		}
		return next, nil
	}

	if err := m.store.Set(ctx, userID, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Clear resets the user to Idle unconditionally.
func (m *Machine) Clear(ctx context.Context, userID int64) error {
	return m.store.Clear(ctx, userID)
}

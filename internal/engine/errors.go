// internal/engine/errors.go
package engine

import (
	"errors"

	"campus-ai-bot/internal/session"
)

// Failure classes surfaced by the engines. Every failure is also
// converted into a localized reply, so none of these ever reach the
// transport layer unhandled; the sentinels exist for logging and tests.
var (
	// ErrStateViolation: the event is not legal in the user's current
	// conversational state. State is left unchanged.
	ErrStateViolation = session.ErrIllegalTransition

	// ErrAccessDenied: banned, agreement not accepted, or not an admin.
	ErrAccessDenied = errors.New("access denied")

	// ErrModelNotAccessible: the per-user access flag for the model is off.
	ErrModelNotAccessible = errors.New("model is not accessible to this user")

	// ErrInsufficientBalance: the balance does not cover the model's cost.
	// No call is made, nothing is charged, the turn stays retryable.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrBackendUnavailable: the completion backend failed or timed out.
	// Nothing is charged, the turn stays retryable.
	ErrBackendUnavailable = errors.New("model backend is unavailable")

	// ErrNotFound: an admin operation referenced a user that does not
	// exist (anymore).
	ErrNotFound = errors.New("user not found")

	// ErrPersistenceConflict: a profile write failed. Reported to the
	// user as a generic transient failure.
	ErrPersistenceConflict = errors.New("profile store write failed")
)

// internal/session/state.go
package session

import (
	"campus-ai-bot/internal/models"
)

// Kind names a conversational mode. Exactly one State is active per
// user at any time.
type Kind string

const (
	KindIdle                 Kind = "idle"
	KindApprovingAgreement   Kind = "approving_agreement"
	KindChoosingModel        Kind = "choosing_model"
	KindConfirmingModel      Kind = "confirming_model"
	KindAwaitingInput        Kind = "awaiting_input"
	KindAdminEntered         Kind = "admin_entered"
	KindAdminSearching       Kind = "admin_searching"
	KindAdminEditingUser     Kind = "admin_editing_user"
	KindAdminChangingAccess  Kind = "admin_changing_access"
	KindAdminChangingBalance Kind = "admin_changing_balance"
)

// State is the tagged union of all conversational modes. Variant is set
// for model-scoped states (confirming_model, awaiting_input); TargetID
// is set for admin states that operate on another user's record.
type State struct {
	Kind     Kind                `json:"kind"`
	Variant  models.ModelVariant `json:"variant,omitempty"`
	TargetID int64               `json:"target_id,omitempty"`
}

// Idle is the neutral state every turn returns to.
var Idle = State{Kind: KindIdle}

// IsAdmin reports whether the state belongs to the admin panel flow.
func (s State) IsAdmin() bool {
	switch s.Kind {
	case KindAdminEntered, KindAdminSearching, KindAdminEditingUser,
		KindAdminChangingAccess, KindAdminChangingBalance:
		return true
	}
	return false
}

// EventKind names a session event.
type EventKind string

const (
	EvStart            EventKind = "start"
	EvRequestAgreement EventKind = "request_agreement"
	EvApproveAgreement EventKind = "approve_agreement"
	EvChooseModel      EventKind = "choose_model"
	EvPickModel        EventKind = "pick_model"
	EvApproveModel     EventKind = "approve_model"
	EvRefuseModel      EventKind = "refuse_model"
	EvBeginChat        EventKind = "begin_chat"
	EvMessageHandled   EventKind = "message_handled"
	EvAdminEnter       EventKind = "admin_enter"
	EvAdminFindUser    EventKind = "admin_find_user"
	EvAdminTargetFound EventKind = "admin_target_found"
	EvAdminTargetLost  EventKind = "admin_target_lost"
	EvAdminEditAccess  EventKind = "admin_edit_access"
	EvAdminAccessDone  EventKind = "admin_access_done"
	EvAdminEditBalance EventKind = "admin_edit_balance"
	EvAdminBalanceDone EventKind = "admin_balance_done"
)

// Event carries an event kind plus the payload the resulting state
// needs (model variant or admin edit target).
type Event struct {
	Kind     EventKind
	Variant  models.ModelVariant
	TargetID int64
}

// Next computes the state that follows cur when ev is applied. The
// second result is false when ev is not legal in cur, in which case the
// returned state equals cur.
func Next(cur State, ev Event) (State, bool) {
	switch ev.Kind {
	case EvStart:
		// /start always lands in idle, whatever was in progress.
		return Idle, true

	case EvRequestAgreement:
		if cur.Kind == KindIdle || cur.Kind == KindApprovingAgreement {
			return State{Kind: KindApprovingAgreement}, true
		}

	case EvApproveAgreement:
		if cur.Kind == KindApprovingAgreement {
			return Idle, true
		}

	case EvChooseModel:
		// Re-issuing the command restarts the picker.
		switch cur.Kind {
		case KindIdle, KindChoosingModel, KindConfirmingModel:
			return State{Kind: KindChoosingModel}, true
		}

	case EvPickModel:
		if cur.Kind == KindChoosingModel && ev.Variant.Valid() {
			return State{Kind: KindConfirmingModel, Variant: ev.Variant}, true
		}

	case EvApproveModel, EvRefuseModel:
		if cur.Kind == KindConfirmingModel {
			return Idle, true
		}

	case EvBeginChat:
		if cur.Kind == KindIdle && ev.Variant.Valid() {
			return State{Kind: KindAwaitingInput, Variant: ev.Variant}, true
		}

	case EvMessageHandled:
		// One-shot turn: a delivered reply closes the exchange.
		if cur.Kind == KindAwaitingInput {
			return Idle, true
		}

	case EvAdminEnter:
		if cur.Kind == KindIdle {
			return State{Kind: KindAdminEntered}, true
		}

	case EvAdminFindUser:
		switch cur.Kind {
		case KindAdminEntered, KindAdminEditingUser:
			return State{Kind: KindAdminSearching}, true
		}

	case EvAdminTargetFound:
		if cur.Kind == KindAdminSearching && ev.TargetID != 0 {
			return State{Kind: KindAdminEditingUser, TargetID: ev.TargetID}, true
		}

	case EvAdminTargetLost:
		switch cur.Kind {
		case KindAdminEditingUser, KindAdminChangingAccess, KindAdminChangingBalance:
			return State{Kind: KindAdminSearching}, true
		}

	case EvAdminEditAccess:
		if cur.Kind == KindAdminEditingUser {
			return State{Kind: KindAdminChangingAccess, TargetID: cur.TargetID}, true
		}

	case EvAdminAccessDone:
		if cur.Kind == KindAdminChangingAccess {
			return State{Kind: KindAdminEditingUser, TargetID: cur.TargetID}, true
		}

	case EvAdminEditBalance:
		if cur.Kind == KindAdminEditingUser {
			return State{Kind: KindAdminChangingBalance, TargetID: cur.TargetID}, true
		}

	case EvAdminBalanceDone:
		if cur.Kind == KindAdminChangingBalance {
			return State{Kind: KindAdminEditingUser, TargetID: cur.TargetID}, true
		}
	}

	return cur, false
}

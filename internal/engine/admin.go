// internal/engine/admin.go
package engine

import (
	"context"
	"fmt"

	"campus-ai-bot/internal/lexicon"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/session"
	"campus-ai-bot/pkg/logger"
)

// Admin is the privileged override engine: it locates any user's record
// and mutates its access flags and balance directly, bypassing the
// metered billing path. Admin mutations never touch the admin's own
// balance or flags.
type Admin struct {
	store   UserStore
	machine *session.Machine
	locks   *userLocks
	logger  *logger.Logger
}

func NewAdmin(store UserStore, machine *session.Machine, log *logger.Logger) *Admin {
	return &Admin{
		store:   store,
		machine: machine,
		locks:   newUserLocks(),
		logger:  log,
	}
}

// requireAdmin loads the acting user's profile and verifies the admin
// flag. A failed check produces the denial reply with no state change.
func (a *Admin) requireAdmin(ctx context.Context, adminID int64) (*models.User, *Reply, error) {
	admin, err := a.store.GetUser(ctx, adminID)
	if err != nil {
		return nil, reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if admin == nil || !admin.IsAdmin {
		return nil, reply(langOf(admin), lexicon.AdminDenied), ErrAccessDenied
	}
	return admin, nil, nil
}

// loadTarget fetches the pinned edit target. If the target vanished
// between search and edit, the admin is sent back to the searching
// sub-state.
func (a *Admin) loadTarget(ctx context.Context, adminID, targetID int64, lang string) (*models.User, *Reply, error) {
	target, err := a.store.GetUser(ctx, targetID)
	if err != nil {
		return nil, reply(lang, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if target == nil {
		if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminTargetLost}); err != nil {
			_ = a.machine.Clear(ctx, adminID)
		}
		return nil, reply(lang, lexicon.AdminTargetLost), ErrNotFound
	}
	return target, nil, nil
}

// Enter opens the admin panel. Non-admins are refused with no state
// change.
func (a *Admin) Enter(ctx context.Context, adminID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminEnter}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	a.logger.Infow("admin entered the panel", "admin_id", adminID)
	return reply(admin.Language, lexicon.AdminMenu).
		withButtons([]Button{
			btn(admin.Language, lexicon.BtnFindUser, "admin_find_user"),
			btn(admin.Language, lexicon.BtnStats, "admin_stats"),
		}), nil
}

// BeginSearch asks for a target user id.
func (a *Admin) BeginSearch(ctx context.Context, adminID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminFindUser}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	return reply(admin.Language, lexicon.AdminAskID), nil
}

// Search looks the target up by exact numeric id. On a hit the target
// is pinned into the admin's session for the following edits; on a miss
// the admin stays in the searching sub-state.
func (a *Admin) Search(ctx context.Context, adminID, targetID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	state, err := a.machine.Current(ctx, adminID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAdminSearching {
		return reply(admin.Language, lexicon.WrongState), ErrStateViolation
	}

	target, err := a.store.GetUser(ctx, targetID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if target == nil {
		return reply(admin.Language, lexicon.AdminNotFound), ErrNotFound
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminTargetFound, TargetID: targetID}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	return reply(admin.Language, lexicon.AdminUserFound,
		target.FullName, target.Username, target.Language,
		displayName(target.ChatModel), target.TokenBalance).
		withButtons(
			[]Button{
				btn(admin.Language, lexicon.BtnEditAccess, "admin_edit_access"),
				btn(admin.Language, lexicon.BtnEditTokens, "admin_edit_tokens"),
			},
			[]Button{btn(admin.Language, lexicon.BtnFindUser, "admin_find_user")},
		), nil
}

// accessLabel renders a toggle button for one variant with its current
// on/off marker.
func accessLabel(v models.ModelVariant, on bool) string {
	marker := "❌"
	if on {
		marker = "✅"
	}
	return fmt.Sprintf("%s %s", displayName(v), marker)
}

// BeginAccessEdit shows the target's per-model access toggles.
func (a *Admin) BeginAccessEdit(ctx context.Context, adminID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	state, err := a.machine.Current(ctx, adminID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAdminEditingUser {
		return reply(admin.Language, lexicon.WrongState), ErrStateViolation
	}

	target, rep, err := a.loadTarget(ctx, adminID, state.TargetID, admin.Language)
	if rep != nil {
		return rep, err
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminEditAccess}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	var row []Button
	for _, v := range models.Variants {
		row = append(row, Button{
			Label: accessLabel(v, target.HasAccess(v)),
			Data:  "admin_access_" + string(v),
		})
	}

	return reply(admin.Language, lexicon.AdminAccessMenu, target.FullName).
		withButtons(row), nil
}

// ToggleAccess flips exactly one access flag on the pinned target and
// persists it. The toggle is idempotent per press and always succeeds
// while the target exists.
func (a *Admin) ToggleAccess(ctx context.Context, adminID int64, variant models.ModelVariant) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	state, err := a.machine.Current(ctx, adminID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAdminChangingAccess || !variant.Valid() {
		return reply(admin.Language, lexicon.WrongState), ErrStateViolation
	}

	target, rep, err := a.loadTarget(ctx, adminID, state.TargetID, admin.Language)
	if rep != nil {
		return rep, err
	}

	newValue := !target.HasAccess(variant)
	found, err := a.store.SetAccess(ctx, target.UserID, variant, newValue)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if !found {
		if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminTargetLost}); err != nil {
			_ = a.machine.Clear(ctx, adminID)
		}
		return reply(admin.Language, lexicon.AdminTargetLost), ErrNotFound
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminAccessDone}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	a.logger.Infow("admin toggled model access",
		"admin_id", adminID, "target_id", target.UserID, "variant", variant, "access", newValue)
	return reply(admin.Language, lexicon.AdminAccessDone), nil
}

// BeginBalanceEdit shows the target's balance and asks for a new value.
func (a *Admin) BeginBalanceEdit(ctx context.Context, adminID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	state, err := a.machine.Current(ctx, adminID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAdminEditingUser {
		return reply(admin.Language, lexicon.WrongState), ErrStateViolation
	}

	target, rep, err := a.loadTarget(ctx, adminID, state.TargetID, admin.Language)
	if rep != nil {
		return rep, err
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminEditBalance}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	return reply(admin.Language, lexicon.AdminAskBalance, target.FullName, target.TokenBalance), nil
}

// SetBalance overwrites the target's balance unconditionally. This is
// the administrative override, not the metered deduction path; the only
// constraint is that the new value is non-negative.
func (a *Admin) SetBalance(ctx context.Context, adminID, newBalance int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	state, err := a.machine.Current(ctx, adminID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAdminChangingBalance {
		return reply(admin.Language, lexicon.WrongState), ErrStateViolation
	}

	if newBalance < 0 {
		return reply(admin.Language, lexicon.AdminEnterNumber), ErrStateViolation
	}

	if _, rep, err := a.loadTarget(ctx, adminID, state.TargetID, admin.Language); rep != nil {
		return rep, err
	}

	found, err := a.store.SetBalance(ctx, state.TargetID, newBalance)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if !found {
		if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminTargetLost}); err != nil {
			_ = a.machine.Clear(ctx, adminID)
		}
		return reply(admin.Language, lexicon.AdminTargetLost), ErrNotFound
	}

	if _, err := a.machine.Transition(ctx, adminID, session.Event{Kind: session.EvAdminBalanceDone}); err != nil {
		return reply(admin.Language, lexicon.WrongState), err
	}

	a.logger.Infow("admin overwrote token balance",
		"admin_id", adminID, "target_id", state.TargetID, "balance", newBalance)
	return reply(admin.Language, lexicon.AdminBalanceDone, newBalance), nil
}

// InvalidNumber answers non-numeric input in the id or balance prompts.
func (a *Admin) InvalidNumber(ctx context.Context, adminID int64) (*Reply, error) {
	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}
	return reply(admin.Language, lexicon.AdminEnterNumber), nil
}

// Stats reports the registered user count.
func (a *Admin) Stats(ctx context.Context, adminID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	count, err := a.store.CountUsers(ctx)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}

	return reply(admin.Language, lexicon.AdminStats, count), nil
}

// DeleteUser removes a user's record entirely. Maintenance command,
// outside the panel's keyboard flow.
func (a *Admin) DeleteUser(ctx context.Context, adminID, targetID int64) (*Reply, error) {
	defer a.locks.acquire(adminID)()

	admin, rep, err := a.requireAdmin(ctx, adminID)
	if rep != nil {
		return rep, err
	}

	found, err := a.store.DeleteUser(ctx, targetID)
	if err != nil {
		return reply(admin.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if !found {
		return reply(admin.Language, lexicon.AdminNotFound), ErrNotFound
	}

	a.logger.Infow("admin deleted user", "admin_id", adminID, "target_id", targetID)
	return reply(admin.Language, lexicon.AdminDeleted), nil
}

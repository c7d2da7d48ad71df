package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-ai-bot/internal/lexicon"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/session"
)

const (
	adminID  int64 = 100
	targetID int64 = 12345
)

func (e *testEnv) enterSearch(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := e.admin.Enter(ctx, adminID)
	require.NoError(t, err)
	_, err = e.admin.BeginSearch(ctx, adminID)
	require.NoError(t, err)
}

func TestAdminEnter_NonAdminDenied(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 0)
	ctx := context.Background()

	reply, err := env.admin.Enter(ctx, 1)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Equal(t, lexicon.Text("ru", lexicon.AdminDenied), reply.Text)
	require.Equal(t, session.Idle, env.state(t, 1))

	// Unknown users are denied the same way.
	_, err = env.admin.Enter(ctx, 999)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAdminSearch_MissRetainsSearchState(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.enterSearch(t)
	ctx := context.Background()

	reply, err := env.admin.Search(ctx, adminID, targetID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, lexicon.Text("ru", lexicon.AdminNotFound), reply.Text)
	require.Equal(t, session.KindAdminSearching, env.state(t, adminID).Kind)

	// The target registers; the same search now pins them.
	env.registerApproved(t, targetID, 0)
	reply, err = env.admin.Search(ctx, adminID, targetID)
	require.NoError(t, err)
	require.NotEmpty(t, reply.Buttons)

	st := env.state(t, adminID)
	require.Equal(t, session.KindAdminEditingUser, st.Kind)
	require.Equal(t, targetID, st.TargetID)
}

func TestAdminSetBalance_OverwritesUnconditionally(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.registerApproved(t, targetID, 5000)
	env.enterSearch(t)
	ctx := context.Background()

	_, err := env.admin.Search(ctx, adminID, targetID)
	require.NoError(t, err)

	reply, err := env.admin.BeginBalanceEdit(ctx, adminID)
	require.NoError(t, err)
	require.Contains(t, reply.Text, "5000")

	// Negative values are refused before touching the record.
	_, err = env.admin.SetBalance(ctx, adminID, -1)
	require.ErrorIs(t, err, ErrStateViolation)
	require.EqualValues(t, 5000, env.balance(t, targetID))

	_, err = env.admin.SetBalance(ctx, adminID, 700)
	require.NoError(t, err)
	require.EqualValues(t, 700, env.balance(t, targetID))
	require.Equal(t, session.KindAdminEditingUser, env.state(t, adminID).Kind)

	// The admin's own balance is untouched by the override.
	require.EqualValues(t, 0, env.balance(t, adminID))
}

func TestAdminToggleAccess_ThenTargetSelectionRefused(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.registerApproved(t, targetID, 500)
	env.enterSearch(t)
	ctx := context.Background()

	_, err := env.admin.Search(ctx, adminID, targetID)
	require.NoError(t, err)
	_, err = env.admin.BeginAccessEdit(ctx, adminID)
	require.NoError(t, err)

	_, err = env.admin.ToggleAccess(ctx, adminID, models.ModelScripted)
	require.NoError(t, err)

	target, err := env.store.GetUser(ctx, targetID)
	require.NoError(t, err)
	require.False(t, target.HasAccess(models.ModelScripted))

	// The target can no longer pick the scripted mode.
	_, err = env.router.ChooseModel(ctx, targetID)
	require.NoError(t, err)
	_, err = env.router.SelectModel(ctx, targetID, models.ModelScripted)
	require.ErrorIs(t, err, ErrModelNotAccessible)

	// Toggling again restores access.
	_, err = env.admin.BeginAccessEdit(ctx, adminID)
	require.NoError(t, err)
	_, err = env.admin.ToggleAccess(ctx, adminID, models.ModelScripted)
	require.NoError(t, err)

	target, err = env.store.GetUser(ctx, targetID)
	require.NoError(t, err)
	require.True(t, target.HasAccess(models.ModelScripted))
}

func TestAdmin_TargetVanishesMidEdit(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.registerApproved(t, targetID, 0)
	env.enterSearch(t)
	ctx := context.Background()

	_, err := env.admin.Search(ctx, adminID, targetID)
	require.NoError(t, err)

	// Deleted between search and edit.
	_, err = env.store.DeleteUser(ctx, targetID)
	require.NoError(t, err)

	reply, err := env.admin.BeginBalanceEdit(ctx, adminID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, lexicon.Text("ru", lexicon.AdminTargetLost), reply.Text)
	require.Equal(t, session.KindAdminSearching, env.state(t, adminID).Kind)
}

func TestAdmin_OperationsOutOfOrderAreViolations(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	ctx := context.Background()

	// Editing before entering the panel or pinning a target.
	_, err := env.admin.Search(ctx, adminID, targetID)
	require.ErrorIs(t, err, ErrStateViolation)
	_, err = env.admin.SetBalance(ctx, adminID, 10)
	require.ErrorIs(t, err, ErrStateViolation)
	_, err = env.admin.ToggleAccess(ctx, adminID, models.ModelGPT4o)
	require.ErrorIs(t, err, ErrStateViolation)
	require.Equal(t, session.Idle, env.state(t, adminID))
}

func TestAdminStats_CountsUsers(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.registerApproved(t, 1, 0)
	env.registerApproved(t, 2, 0)
	ctx := context.Background()

	reply, err := env.admin.Stats(ctx, adminID)
	require.NoError(t, err)
	require.Equal(t, lexicon.Textf("ru", lexicon.AdminStats, int64(3)), reply.Text)
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin(t, adminID)
	env.registerApproved(t, targetID, 0)
	ctx := context.Background()

	_, err := env.admin.DeleteUser(ctx, adminID, targetID)
	require.NoError(t, err)

	user, err := env.store.GetUser(ctx, targetID)
	require.NoError(t, err)
	require.Nil(t, user)

	_, err = env.admin.DeleteUser(ctx, adminID, targetID)
	require.ErrorIs(t, err, ErrNotFound)
}

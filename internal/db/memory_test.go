package db

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-ai-bot/internal/models"
)

func TestMemoryStore_CreateUserIfAbsentIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, existed, err := store.CreateUserIfAbsent(ctx, 42, "alice", "Alice A")
	require.NoError(t, err)
	require.False(t, existed)
	require.Equal(t, "ru", first.Language)
	require.Equal(t, models.ModelGPT4o, first.ChatModel)
	require.True(t, first.GPT4oAccess)
	require.True(t, first.Llama3Access)
	require.True(t, first.ScriptedAccess)
	require.Zero(t, first.TokenBalance)
	require.False(t, first.AgreementApproved)

	second, existed, err := store.CreateUserIfAbsent(ctx, 42, "alice", "Alice A")
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, first.TokenBalance, second.TokenBalance)
}

func TestMemoryStore_UpsertRefreshesDisplayFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 7, "old_name", "Old Name")
	require.NoError(t, err)

	user, existed, err := store.CreateUserIfAbsent(ctx, 7, "new_name", "New Name")
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, "new_name", user.Username)
	require.Equal(t, "New Name", user.FullName)
}

func TestMemoryStore_DeductBalanceIsConditional(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 1, "u", "U")
	require.NoError(t, err)

	_, err = store.SetBalance(ctx, 1, 120)
	require.NoError(t, err)

	ok, err := store.DeductBalance(ctx, 1, 100)
	require.NoError(t, err)
	require.True(t, ok)

	// 20 left: another deduction of 100 must be refused untouched.
	ok, err = store.DeductBalance(ctx, 1, 100)
	require.NoError(t, err)
	require.False(t, ok)

	user, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 20, user.TokenBalance)
}

func TestMemoryStore_BalanceNeverGoesNegativeUnderConcurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 1, "u", "U")
	require.NoError(t, err)
	_, err = store.SetBalance(ctx, 1, 250)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.DeductBalance(ctx, 1, 100)
		}()
	}
	wg.Wait()

	user, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	// 250 covers exactly two deductions of 100.
	require.EqualValues(t, 50, user.TokenBalance)
}

func TestMemoryStore_SetBalanceRejectsNegative(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 1, "u", "U")
	require.NoError(t, err)

	_, err = store.SetBalance(ctx, 1, -5)
	require.Error(t, err)

	user, err := store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, user.TokenBalance)
}

func TestMemoryStore_SetAccessAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 9, "u", "U")
	require.NoError(t, err)

	found, err := store.SetAccess(ctx, 9, models.ModelScripted, false)
	require.NoError(t, err)
	require.True(t, found)

	user, err := store.GetUser(ctx, 9)
	require.NoError(t, err)
	require.False(t, user.HasAccess(models.ModelScripted))
	require.True(t, user.HasAccess(models.ModelGPT4o))

	found, err = store.DeleteUser(ctx, 9)
	require.NoError(t, err)
	require.True(t, found)

	user, err = store.GetUser(ctx, 9)
	require.NoError(t, err)
	require.Nil(t, user)

	found, err = store.DeleteUser(ctx, 9)
	require.NoError(t, err)
	require.False(t, found)

	found, err = store.SetAccess(ctx, 9, models.ModelScripted, true)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStore_GetUserReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.CreateUserIfAbsent(ctx, 3, "u", "U")
	require.NoError(t, err)

	user, err := store.GetUser(ctx, 3)
	require.NoError(t, err)
	user.TokenBalance = 999999

	fresh, err := store.GetUser(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, fresh.TokenBalance)
}

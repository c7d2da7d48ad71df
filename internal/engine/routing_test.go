package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-ai-bot/internal/db"
	"campus-ai-bot/internal/lexicon"
	"campus-ai-bot/internal/llm"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/session"
	"campus-ai-bot/pkg/logger"
)

type fakeBackend struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeBackend) Complete(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type testEnv struct {
	store    *db.MemoryStore
	machine  *session.Machine
	router   *Router
	admin    *Admin
	gpt      *fakeBackend
	llama    *fakeBackend
	scripted *fakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    db.NewMemoryStore(),
		machine:  session.NewMachine(session.NewMemoryStore()),
		gpt:      &fakeBackend{response: "gpt answer"},
		llama:    &fakeBackend{response: "llama answer"},
		scripted: &fakeBackend{response: "scripted answer"},
	}

	backends := llm.Registry{
		models.ModelGPT4o:    env.gpt,
		models.ModelLlama3:   env.llama,
		models.ModelScripted: env.scripted,
	}

	env.router = NewRouter(env.store, env.machine, backends, RouterOptions{
		Costs: Costs{
			models.ModelGPT4o:    100,
			models.ModelLlama3:   150,
			models.ModelScripted: 50,
		},
		RequestTimeout: time.Second,
		DeductRetries:  3,
		TopUpTokens:    1000,
	}, logger.NewNop())
	env.admin = NewAdmin(env.store, env.machine, logger.NewNop())

	return env
}

func (e *testEnv) registerApproved(t *testing.T, userID, balance int64) {
	t.Helper()
	ctx := context.Background()

	_, _, err := e.store.CreateUserIfAbsent(ctx, userID, "user", "Test User")
	require.NoError(t, err)
	_, err = e.store.SetAgreementApproved(ctx, userID, true)
	require.NoError(t, err)
	if balance > 0 {
		_, err = e.store.SetBalance(ctx, userID, balance)
		require.NoError(t, err)
	}
}

func (e *testEnv) registerAdmin(t *testing.T, adminID int64) {
	t.Helper()
	e.registerApproved(t, adminID, 0)
	_, err := e.store.SetAdmin(context.Background(), adminID, true)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	user, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.TokenBalance
}

func (e *testEnv) state(t *testing.T, userID int64) session.State {
	t.Helper()
	st, err := e.machine.Current(context.Background(), userID)
	require.NoError(t, err)
	return st
}

func TestStartSession_NewUserMustApproveAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reply, err := env.router.StartSession(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.NotEmpty(t, reply.Buttons)
	require.Equal(t, session.KindApprovingAgreement, env.state(t, 1).Kind)

	// Everything except the agreement is locked.
	_, err = env.router.BeginChat(ctx, 1)
	require.ErrorIs(t, err, ErrAccessDenied)

	reply, err = env.router.ApproveAgreement(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, lexicon.Text("ru", lexicon.AgreementDone), reply.Text)
	require.Equal(t, session.Idle, env.state(t, 1))

	user, err := env.store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, user.AgreementApproved)

	// Second /start greets an existing profile and stays idle.
	reply, err = env.router.StartSession(ctx, 1, "alice", "Alice")
	require.NoError(t, err)
	require.Empty(t, reply.Buttons)
	require.Equal(t, session.Idle, env.state(t, 1))
}

func TestSendText_OutsideTurnIsStateViolation(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 500)

	reply, err := env.router.SendText(context.Background(), 1, "hello")
	require.ErrorIs(t, err, ErrStateViolation)
	require.Equal(t, lexicon.Text("ru", lexicon.IdleHint), reply.Text)
	require.Zero(t, env.gpt.callCount())
	require.EqualValues(t, 500, env.balance(t, 1))
}

func TestSendText_InsufficientBalanceMakesNoCall(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 0)
	ctx := context.Background()

	_, err := env.router.BeginChat(ctx, 1)
	require.NoError(t, err)

	reply, err := env.router.SendText(ctx, 1, "question")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Contains(t, reply.Text, "100")
	require.Zero(t, env.gpt.callCount())
	require.Zero(t, env.balance(t, 1))

	// The turn stays open so the user can retry after topping up.
	require.Equal(t, session.KindAwaitingInput, env.state(t, 1).Kind)
}

func TestModelSwitchThenBilledTurn(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 500)
	ctx := context.Background()

	_, err := env.router.ChooseModel(ctx, 1)
	require.NoError(t, err)

	reply, err := env.router.SelectModel(ctx, 1, models.ModelLlama3)
	require.NoError(t, err)
	require.NotEmpty(t, reply.Buttons)

	_, err = env.router.ConfirmModel(ctx, 1, true)
	require.NoError(t, err)

	user, err := env.store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.ModelLlama3, user.ChatModel)

	_, err = env.router.BeginChat(ctx, 1)
	require.NoError(t, err)

	reply, err = env.router.SendText(ctx, 1, "question")
	require.NoError(t, err)
	require.Equal(t, "llama answer", reply.Text)
	require.EqualValues(t, 350, env.balance(t, 1))
	require.Equal(t, 1, env.llama.callCount())
	require.Zero(t, env.gpt.callCount())

	// One-shot: the next message needs a fresh /chat.
	require.Equal(t, session.Idle, env.state(t, 1))
	_, err = env.router.SendText(ctx, 1, "another question")
	require.ErrorIs(t, err, ErrStateViolation)
	require.EqualValues(t, 350, env.balance(t, 1))
}

func TestConfirmModel_RefuseKeepsSelection(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 0)
	ctx := context.Background()

	_, err := env.router.ChooseModel(ctx, 1)
	require.NoError(t, err)
	_, err = env.router.SelectModel(ctx, 1, models.ModelLlama3)
	require.NoError(t, err)

	_, err = env.router.ConfirmModel(ctx, 1, false)
	require.NoError(t, err)

	user, err := env.store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, models.ModelGPT4o, user.ChatModel)
	require.Equal(t, session.Idle, env.state(t, 1))
}

func TestSelectModel_RefusedWithoutAccessFlag(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 500)
	ctx := context.Background()

	_, err := env.store.SetAccess(ctx, 1, models.ModelScripted, false)
	require.NoError(t, err)

	_, err = env.router.ChooseModel(ctx, 1)
	require.NoError(t, err)

	reply, err := env.router.SelectModel(ctx, 1, models.ModelScripted)
	require.ErrorIs(t, err, ErrModelNotAccessible)
	require.Equal(t, lexicon.Text("ru", lexicon.ModelNoAccess), reply.Text)
	require.Equal(t, session.KindChoosingModel, env.state(t, 1).Kind)
}

func TestSendText_BackendFailureLeavesTurnRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 200)
	ctx := context.Background()

	_, err := env.router.BeginChat(ctx, 1)
	require.NoError(t, err)

	env.gpt.fail(errors.New("upstream timeout"))
	reply, err := env.router.SendText(ctx, 1, "question")
	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.Equal(t, lexicon.Text("ru", lexicon.BackendDown), reply.Text)
	require.EqualValues(t, 200, env.balance(t, 1))
	require.Equal(t, session.KindAwaitingInput, env.state(t, 1).Kind)

	// The backend recovers; the same turn succeeds and is billed once.
	env.gpt.fail(nil)
	reply, err = env.router.SendText(ctx, 1, "question")
	require.NoError(t, err)
	require.Equal(t, "gpt answer", reply.Text)
	require.EqualValues(t, 100, env.balance(t, 1))
	require.Equal(t, session.Idle, env.state(t, 1))
}

func TestSendText_BannedUserDenied(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 500)
	ctx := context.Background()

	_, err := env.router.BeginChat(ctx, 1)
	require.NoError(t, err)

	_, err = env.store.SetBanned(ctx, 1, true)
	require.NoError(t, err)

	reply, err := env.router.SendText(ctx, 1, "question")
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Equal(t, lexicon.Text("ru", lexicon.Banned), reply.Text)
	require.Zero(t, env.gpt.callCount())
	require.EqualValues(t, 500, env.balance(t, 1))
}

// drainedStore simulates an admin emptying the balance between the
// affordability check and the deduction.
type drainedStore struct {
	*db.MemoryStore
}

func (s *drainedStore) DeductBalance(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func TestSendText_BillingWriteFailureStillDeliversReply(t *testing.T) {
	memory := db.NewMemoryStore()
	machine := session.NewMachine(session.NewMemoryStore())
	gpt := &fakeBackend{response: "gpt answer"}

	router := NewRouter(&drainedStore{memory}, machine, llm.Registry{
		models.ModelGPT4o: gpt,
	}, RouterOptions{
		Costs:          Costs{models.ModelGPT4o: 100},
		RequestTimeout: time.Second,
	}, logger.NewNop())

	ctx := context.Background()
	_, _, err := memory.CreateUserIfAbsent(ctx, 1, "u", "U")
	require.NoError(t, err)
	_, err = memory.SetAgreementApproved(ctx, 1, true)
	require.NoError(t, err)
	_, err = memory.SetBalance(ctx, 1, 500)
	require.NoError(t, err)

	_, err = router.BeginChat(ctx, 1)
	require.NoError(t, err)

	// The answer is delivered and the turn closes; the missed charge
	// is an internal reconciliation item, not a user-facing failure.
	reply, err := router.SendText(ctx, 1, "question")
	require.NoError(t, err)
	require.Equal(t, "gpt answer", reply.Text)

	st, err := machine.Current(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, session.Idle, st)
}

func TestCancelAction_AlwaysReturnsToIdle(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 500)
	ctx := context.Background()

	_, err := env.router.ChooseModel(ctx, 1)
	require.NoError(t, err)

	reply, err := env.router.CancelAction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, lexicon.Text("ru", lexicon.Cancelled), reply.Text)
	require.Equal(t, session.Idle, env.state(t, 1))
}

func TestToggleLanguage_SwitchesReplies(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 0)
	ctx := context.Background()

	reply, err := env.router.ToggleLanguage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, lexicon.Textf("en", lexicon.LanguageChanged, "en"), reply.Text)

	user, err := env.store.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "en", user.Language)

	reply, err = env.router.ShowBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, lexicon.Textf("en", lexicon.Balance, int64(0)), reply.Text)
}

func TestCreditTokens(t *testing.T) {
	env := newTestEnv(t)
	env.registerApproved(t, 1, 200)
	ctx := context.Background()

	reply, err := env.router.CreditTokens(ctx, 1, 1000)
	require.NoError(t, err)
	require.NotNil(t, reply)
	require.EqualValues(t, 1200, env.balance(t, 1))

	_, err = env.router.CreditTokens(ctx, 404, 1000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentUsersProceedIndependently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const users = 8
	for id := int64(1); id <= users; id++ {
		env.registerApproved(t, id, 100)
		_, err := env.router.BeginChat(ctx, id)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for id := int64(1); id <= users; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = env.router.SendText(ctx, id, "question")
		}(id)
	}
	wg.Wait()

	for id := int64(1); id <= users; id++ {
		require.EqualValues(t, 0, env.balance(t, id))
		require.Equal(t, session.Idle, env.state(t, id))
	}
	require.Equal(t, users, env.gpt.callCount())
}

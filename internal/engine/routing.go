// internal/engine/routing.go
package engine

import (
	"context"
	"fmt"
	"time"

	"campus-ai-bot/internal/lexicon"
	"campus-ai-bot/internal/llm"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/session"
	"campus-ai-bot/pkg/logger"
)

// Costs is the per-call token price of each model variant.
type Costs map[models.ModelVariant]int64

// RouterOptions carries the billing and backend tunables.
type RouterOptions struct {
	Costs Costs
	// RequestTimeout bounds one completion call.
	RequestTimeout time.Duration
	// DeductRetries caps retries of a failing balance decrement.
	DeductRetries int
	// TopUpTokens is the size of one purchasable token pack.
	TopUpTokens int64
}

// Router converts inbound user events into billed backend calls and
// state transitions. All failures are classified and paired with a
// localized reply; the transport never sees an unhandled fault.
type Router struct {
	store    UserStore
	machine  *session.Machine
	backends llm.Registry
	opts     RouterOptions
	locks    *userLocks
	logger   *logger.Logger
}

func NewRouter(store UserStore, machine *session.Machine, backends llm.Registry, opts RouterOptions, log *logger.Logger) *Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.DeductRetries <= 0 {
		opts.DeductRetries = 3
	}
	return &Router{
		store:    store,
		machine:  machine,
		backends: backends,
		opts:     opts,
		locks:    newUserLocks(),
		logger:   log,
	}
}

// Machine exposes the session state machine for the transport's
// free-text dispatch.
func (r *Router) Machine() *session.Machine {
	return r.machine
}

// TopUpTokens reports the configured token pack size.
func (r *Router) TopUpTokens() int64 {
	return r.opts.TopUpTokens
}

func langOf(user *models.User) string {
	if user == nil {
		return "ru"
	}
	return user.Language
}

func displayName(v models.ModelVariant) string {
	switch v {
	case models.ModelGPT4o:
		return "GPT4o"
	case models.ModelLlama3:
		return "Llama3"
	default:
		return "Scripted"
	}
}

// gate applies the checks every user-facing operation shares: the user
// must exist, must not be banned, and must have accepted the agreement.
func gate(user *models.User) (*Reply, error) {
	if user == nil {
		return reply("ru", lexicon.NeedStart), ErrAccessDenied
	}
	if user.Banned {
		return reply(user.Language, lexicon.Banned), ErrAccessDenied
	}
	if !user.AgreementApproved {
		return reply(user.Language, lexicon.NeedAgreement), ErrAccessDenied
	}
	return nil, nil
}

// StartSession registers the user on first contact (idempotent) and
// greets them. Users who have not accepted the agreement yet are put
// into the agreement-approval state instead of the main menu.
func (r *Router) StartSession(ctx context.Context, userID int64, username, fullName string) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, existed, err := r.store.CreateUserIfAbsent(ctx, userID, username, fullName)
	if err != nil {
		r.logger.Errorw("failed to register user", "user_id", userID, "error", err)
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}

	if user.Banned {
		return reply(user.Language, lexicon.Banned), ErrAccessDenied
	}

	// /start aborts whatever was in progress.
	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvStart}); err != nil {
		return reply(user.Language, lexicon.TransientError), err
	}

	if !user.AgreementApproved {
		if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvRequestAgreement}); err != nil {
			return reply(user.Language, lexicon.TransientError), err
		}
		return reply(user.Language, lexicon.Agreement).
			withButtons([]Button{btn(user.Language, lexicon.BtnAgree, "agree")}), nil
	}

	r.logger.Infow("user started the bot", "user_id", userID, "preexisting", existed)

	if existed {
		return reply(user.Language, lexicon.WelcomeBack, user.FullName), nil
	}
	return reply(user.Language, lexicon.Welcome, user.FullName), nil
}

// ApproveAgreement flips the agreement flag and unlocks the bot.
func (r *Router) ApproveAgreement(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if user == nil {
		return reply("ru", lexicon.NeedStart), ErrAccessDenied
	}

	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvApproveAgreement}); err != nil {
		return reply(user.Language, lexicon.WrongState), err
	}

	if _, err := r.store.SetAgreementApproved(ctx, userID, true); err != nil {
		return reply(user.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}

	r.logger.Infow("user accepted the agreement", "user_id", userID)
	return reply(user.Language, lexicon.AgreementDone), nil
}

// BeginChat opens a one-shot exchange with the user's selected model.
func (r *Router) BeginChat(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	variant := user.ChatModel
	if !variant.Valid() {
		variant = models.ModelGPT4o
	}

	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvBeginChat, Variant: variant}); err != nil {
		return reply(user.Language, lexicon.WrongState), err
	}

	return reply(user.Language, lexicon.ChatIntro), nil
}

// SendText is the billed hot path: it routes the message to the model
// bound to the open turn, charges its cost on success, and closes the
// turn. Insufficient balance and backend failures leave the turn open
// so the same message can be retried; nothing is charged in either
// case.
func (r *Router) SendText(ctx context.Context, userID int64, text string) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	state, err := r.machine.Current(ctx, userID)
	if err != nil {
		return reply(user.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindAwaitingInput {
		return reply(user.Language, lexicon.IdleHint), ErrStateViolation
	}
	variant := state.Variant

	if !user.HasAccess(variant) {
		// Retrying the same variant cannot succeed; close the turn.
		_ = r.machine.Clear(ctx, userID)
		return reply(user.Language, lexicon.ModelNoAccess), ErrModelNotAccessible
	}

	cost := r.opts.Costs[variant]
	if user.TokenBalance < cost {
		return reply(user.Language, lexicon.LowBalance, cost, user.TokenBalance), ErrInsufficientBalance
	}

	backend, ok := r.backends[variant]
	if !ok {
		r.logger.Errorw("no backend registered for variant", "variant", variant)
		return reply(user.Language, lexicon.BackendDown), ErrBackendUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	answer, err := backend.Complete(callCtx, text)
	cancel()
	if err != nil {
		r.logger.Errorw("completion call failed", "user_id", userID, "variant", variant, "error", err)
		return reply(user.Language, lexicon.BackendDown), ErrBackendUnavailable
	}

	// The answer exists, so the charge must follow. A deduction that
	// cannot be applied never suppresses the answer; it is logged for
	// reconciliation instead.
	r.billCompletedCall(ctx, userID, variant, cost)

	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvMessageHandled}); err != nil {
		_ = r.machine.Clear(ctx, userID)
	}

	return &Reply{Text: answer}, nil
}

// billCompletedCall deducts cost for a successful completion. Store
// errors are retried up to the configured budget; a conditional refusal
// (balance drained concurrently) is final. Either terminal failure is
// logged with the reconciliation marker ops tooling scans for.
func (r *Router) billCompletedCall(ctx context.Context, userID int64, variant models.ModelVariant, cost int64) {
	var lastErr error
	for attempt := 0; attempt < r.opts.DeductRetries; attempt++ {
		ok, err := r.store.DeductBalance(ctx, userID, cost)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			r.logger.Errorw("billing reconciliation required: balance no longer covers a delivered completion",
				"user_id", userID, "variant", variant, "cost", cost)
			return
		}
		r.logger.Infow("completion billed", "user_id", userID, "variant", variant, "cost", cost)
		return
	}
	r.logger.Errorw("billing reconciliation required: deduction failed after retries",
		"user_id", userID, "variant", variant, "cost", cost, "error", lastErr)
}

// ChooseModel opens the model picker. Only variants whose access flag
// is on are offered.
func (r *Router) ChooseModel(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvChooseModel}); err != nil {
		return reply(user.Language, lexicon.WrongState), err
	}

	var row []Button
	if user.GPT4oAccess {
		row = append(row, btn(user.Language, lexicon.BtnGPT4o, "choice_gpt4o"))
	}
	if user.Llama3Access {
		row = append(row, btn(user.Language, lexicon.BtnLlama3, "choice_llama3"))
	}
	if user.ScriptedAccess {
		row = append(row, btn(user.Language, lexicon.BtnScripted, "choice_scripted"))
	}

	return reply(user.Language, lexicon.ChooseModel).
		withButtons(row, []Button{btn(user.Language, lexicon.BtnCancel, "cancel")}), nil
}

// SelectModel records a picked variant and asks for confirmation. The
// two-step confirm prevents accidental switches.
func (r *Router) SelectModel(ctx context.Context, userID int64, variant models.ModelVariant) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	if !variant.Valid() {
		return reply(user.Language, lexicon.WrongState), ErrStateViolation
	}
	if !user.HasAccess(variant) {
		return reply(user.Language, lexicon.ModelNoAccess), ErrModelNotAccessible
	}

	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvPickModel, Variant: variant}); err != nil {
		return reply(user.Language, lexicon.WrongState), err
	}

	var key lexicon.Key
	switch variant {
	case models.ModelGPT4o:
		key = lexicon.GPT4oChoice
	case models.ModelLlama3:
		key = lexicon.Llama3Choice
	default:
		key = lexicon.ScriptedChoice
	}

	return reply(user.Language, key, r.opts.Costs[variant]).
		withButtons([]Button{
			btn(user.Language, lexicon.BtnYes, "approve_model"),
			btn(user.Language, lexicon.BtnNo, "refuse_model"),
		}), nil
}

// ConfirmModel finishes the two-step model switch. On approval the
// selection is persisted; on refusal nothing changes. Either way the
// session returns to idle.
func (r *Router) ConfirmModel(ctx context.Context, userID int64, approved bool) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	state, err := r.machine.Current(ctx, userID)
	if err != nil {
		return reply(user.Language, lexicon.TransientError), err
	}
	if state.Kind != session.KindConfirmingModel {
		return reply(user.Language, lexicon.WrongState), ErrStateViolation
	}

	if !approved {
		if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvRefuseModel}); err != nil {
			return reply(user.Language, lexicon.WrongState), err
		}
		return reply(user.Language, lexicon.ModelRefused), nil
	}

	if _, err := r.store.SetChatModel(ctx, userID, state.Variant); err != nil {
		return reply(user.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if _, err := r.machine.Transition(ctx, userID, session.Event{Kind: session.EvApproveModel}); err != nil {
		return reply(user.Language, lexicon.WrongState), err
	}

	r.logger.Infow("user switched model", "user_id", userID, "variant", state.Variant)
	return reply(user.Language, lexicon.ModelSelected, displayName(state.Variant)), nil
}

// CancelAction aborts whatever is in progress and returns to idle.
func (r *Router) CancelAction(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}

	if err := r.machine.Clear(ctx, userID); err != nil {
		return reply(langOf(user), lexicon.TransientError), err
	}
	return reply(langOf(user), lexicon.Cancelled), nil
}

// ShowSettings displays the profile settings with a language toggle.
func (r *Router) ShowSettings(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	return reply(user.Language, lexicon.Settings, user.Language, displayName(user.ChatModel)).
		withButtons([]Button{btn(user.Language, lexicon.BtnLanguage, "toggle_language")}), nil
}

// ToggleLanguage flips the profile language between ru and en.
func (r *Router) ToggleLanguage(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	newLang := "en"
	if user.Language == "en" {
		newLang = "ru"
	}

	if _, err := r.store.SetLanguage(ctx, userID, newLang); err != nil {
		return reply(user.Language, lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}

	return reply(newLang, lexicon.LanguageChanged, newLang), nil
}

// ShowBalance displays the token balance with a top-up option.
func (r *Router) ShowBalance(ctx context.Context, userID int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	return reply(user.Language, lexicon.Balance, user.TokenBalance).
		withButtons([]Button{btn(user.Language, lexicon.BtnTopUp, "topup")}), nil
}

// Help returns the localized command overview.
func (r *Router) Help(ctx context.Context, userID int64) (*Reply, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	return reply(langOf(user), lexicon.Help), nil
}

// TopUpPrompt wraps a payment checkout link into a localized reply.
func (r *Router) TopUpPrompt(ctx context.Context, userID int64, checkoutURL string) (*Reply, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return reply("ru", lexicon.TransientError), fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if rep, err := gate(user); rep != nil {
		return rep, err
	}

	return reply(user.Language, lexicon.TopUpPrompt, r.opts.TopUpTokens).
		withButtons([]Button{{
			Label: lexicon.Text(user.Language, lexicon.BtnTopUp),
			URL:   checkoutURL,
		}}), nil
}

// CreditTokens adds a purchased token pack to the user's balance. It is
// driven by the payment webhook, not by a chat event.
func (r *Router) CreditTokens(ctx context.Context, userID int64, amount int64) (*Reply, error) {
	defer r.locks.acquire(userID)()

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	ok, err := r.store.CreditBalance(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	r.logger.Infow("token pack credited", "user_id", userID, "amount", amount)
	return reply(user.Language, lexicon.TopUpCredited, amount), nil
}

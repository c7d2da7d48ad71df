package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"campus-ai-bot/internal/engine"
	"campus-ai-bot/internal/lexicon"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/payment"
	"campus-ai-bot/internal/session"
	"campus-ai-bot/pkg/logger"
)

// TelegramBot wires Telegram updates into the routing and admin
// engines. It owns no conversational logic itself: every inbound event
// is translated into exactly one engine call, and the engine's reply is
// sent back as the turn's single final message.
type TelegramBot struct {
	bot          *tgbotapi.BotAPI
	router       *engine.Router
	admin        *engine.Admin
	stripeClient *payment.StripeClient
	logger       *logger.Logger
}

func NewTelegramBot(token string, router *engine.Router, admin *engine.Admin, stripeClient *payment.StripeClient, logger *logger.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Info("Authorized on Telegram", "username", bot.Self.UserName)

	return &TelegramBot{
		bot:          bot,
		router:       router,
		admin:        admin,
		stripeClient: stripeClient,
		logger:       logger,
	}, nil
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	t.logger.Info("Removing any existing webhook")
	_, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := t.bot.GetUpdatesChan(updateConfig)

	t.logger.Info("Started receiving Telegram updates")

	go t.handleUpdates(ctx, updates)

	return nil
}

// handleUpdates processes incoming updates from Telegram
func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go func(update tgbotapi.Update) {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("Recovered from panic while processing update", "error", r)
				}
			}()

			switch {
			case update.Message != nil && update.Message.IsCommand():
				t.handleCommand(ctx, update.Message)
			case update.Message != nil:
				t.handleMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				t.handleCallbackQuery(ctx, update.CallbackQuery)
			}
		}(update)
	}
}

// send delivers an engine reply as one Telegram message with an
// optional inline keyboard.
func (t *TelegramBot) send(chatID int64, reply *engine.Reply) {
	if reply == nil || reply.Text == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Buttons) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, row := range reply.Buttons {
			var buttons []tgbotapi.InlineKeyboardButton
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
				}
			}
			if len(buttons) > 0 {
				rows = append(rows, buttons)
			}
		}
		if len(rows) > 0 {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		}
	}

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// logOutcome records an engine failure at a severity matching its
// class. State violations are routine user behavior, not incidents.
func (t *TelegramBot) logOutcome(op string, userID int64, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, engine.ErrStateViolation),
		errors.Is(err, engine.ErrAccessDenied),
		errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrModelNotAccessible),
		errors.Is(err, engine.ErrNotFound):
		t.logger.Infow("request refused", "op", op, "user_id", userID, "reason", err)
	default:
		t.logger.Errorw("request failed", "op", op, "user_id", userID, "error", err)
	}
}

func fullName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	chatID := message.Chat.ID
	userID := message.From.ID

	t.logger.Info("Handling command", "command", command, "user_id", userID)

	var reply *engine.Reply
	var err error

	switch command {
	case "start":
		reply, err = t.router.StartSession(ctx, userID, message.From.UserName, fullName(message.From))
	case "chat":
		reply, err = t.router.BeginChat(ctx, userID)
	case "model":
		reply, err = t.router.ChooseModel(ctx, userID)
	case "settings":
		reply, err = t.router.ShowSettings(ctx, userID)
	case "balance":
		reply, err = t.router.ShowBalance(ctx, userID)
	case "cancel":
		reply, err = t.router.CancelAction(ctx, userID)
	case "admin":
		reply, err = t.admin.Enter(ctx, userID)
	case "delete":
		targetID, parseErr := strconv.ParseInt(strings.TrimSpace(message.CommandArguments()), 10, 64)
		if parseErr != nil {
			reply, err = t.admin.InvalidNumber(ctx, userID)
		} else {
			reply, err = t.admin.DeleteUser(ctx, userID, targetID)
		}
	default:
		reply, err = t.router.Help(ctx, userID)
	}

	t.logOutcome("/"+command, userID, err)
	t.send(chatID, reply)
}

// handleMessage routes free text by the user's current session state.
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID
	text := message.Text

	state, err := t.router.Machine().Current(ctx, userID)
	if err != nil {
		t.logger.Errorw("failed to read session state", "user_id", userID, "error", err)
	}

	var reply *engine.Reply

	switch state.Kind {
	case session.KindAdminSearching:
		targetID, parseErr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if parseErr != nil {
			reply, err = t.admin.InvalidNumber(ctx, userID)
		} else {
			reply, err = t.admin.Search(ctx, userID, targetID)
		}
	case session.KindAdminChangingBalance:
		balance, parseErr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if parseErr != nil {
			reply, err = t.admin.InvalidNumber(ctx, userID)
		} else {
			reply, err = t.admin.SetBalance(ctx, userID, balance)
		}
	default:
		// The billed hot path; also answers idle chatter with the
		// "/chat first" hint via a state violation.
		t.sendTyping(chatID, state)
		reply, err = t.router.SendText(ctx, userID, text)
	}

	t.logOutcome("message", userID, err)
	t.send(chatID, reply)
}

// sendTyping shows the typing indicator while a completion is running.
// Intermediate status only; it is not the turn's reply.
func (t *TelegramBot) sendTyping(chatID int64, state session.State) {
	if state.Kind != session.KindAwaitingInput {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.bot.Request(action); err != nil {
		t.logger.Debugw("failed to send typing action", "chat_id", chatID, "error", err)
	}
}

// handleCallbackQuery processes inline keyboard presses.
func (t *TelegramBot) handleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery) {
	userID := callbackQuery.From.ID
	chatID := userID
	if callbackQuery.Message != nil {
		chatID = callbackQuery.Message.Chat.ID
	}
	data := callbackQuery.Data

	// Acknowledge the press so the client stops its spinner.
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackQuery.ID, "")); err != nil {
		t.logger.Debugw("failed to ack callback", "user_id", userID, "error", err)
	}

	var reply *engine.Reply
	var err error

	switch {
	case data == "agree":
		reply, err = t.router.ApproveAgreement(ctx, userID)
	case strings.HasPrefix(data, "choice_"):
		variant := models.ModelVariant(strings.TrimPrefix(data, "choice_"))
		reply, err = t.router.SelectModel(ctx, userID, variant)
	case data == "approve_model":
		reply, err = t.router.ConfirmModel(ctx, userID, true)
	case data == "refuse_model":
		reply, err = t.router.ConfirmModel(ctx, userID, false)
	case data == "cancel":
		reply, err = t.router.CancelAction(ctx, userID)
	case data == "toggle_language":
		reply, err = t.router.ToggleLanguage(ctx, userID)
	case data == "topup":
		reply, err = t.handleTopUpRequest(ctx, userID)
	case data == "admin_find_user":
		reply, err = t.admin.BeginSearch(ctx, userID)
	case data == "admin_stats":
		reply, err = t.admin.Stats(ctx, userID)
	case data == "admin_edit_access":
		reply, err = t.admin.BeginAccessEdit(ctx, userID)
	case data == "admin_edit_tokens":
		reply, err = t.admin.BeginBalanceEdit(ctx, userID)
	case strings.HasPrefix(data, "admin_access_"):
		variant := models.ModelVariant(strings.TrimPrefix(data, "admin_access_"))
		reply, err = t.admin.ToggleAccess(ctx, userID, variant)
	default:
		t.logger.Debugw("ignoring unknown callback", "user_id", userID, "data", data)
		return
	}

	t.logOutcome("callback:"+data, userID, err)
	t.send(chatID, reply)
}

// handleTopUpRequest opens a checkout session and hands the user the
// payment link.
func (t *TelegramBot) handleTopUpRequest(ctx context.Context, userID int64) (*engine.Reply, error) {
	successURL := fmt.Sprintf("https://t.me/%s?start=payment_success", t.bot.Self.UserName)
	cancelURL := fmt.Sprintf("https://t.me/%s?start=payment_cancel", t.bot.Self.UserName)

	_, checkoutURL, err := t.stripeClient.CreateTopUpSession(userID, successURL, cancelURL)
	if err != nil {
		t.logger.Error("Failed to create checkout session", "user_id", userID, "error", err)
		return &engine.Reply{Text: lexicon.Text("ru", lexicon.TransientError)}, err
	}

	return t.router.TopUpPrompt(ctx, userID, checkoutURL)
}

// Stop gracefully shuts down the bot
func (t *TelegramBot) Stop(ctx context.Context) error {
	t.bot.StopReceivingUpdates()

	// Allow time for in-flight handlers to complete
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}

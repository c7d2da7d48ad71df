package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v72"
)

// HandleStripeWebhook receives checkout events and credits token packs.
func (t *TelegramBot) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.logger.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	webhookSecret := t.stripeClient.GetWebhookSecret()
	if webhookSecret == "" {
		t.logger.Error("Webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		t.logger.Error("Missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := t.stripeClient.VerifyWebhookSignature(body, signature, webhookSecret)
	if err != nil {
		t.logger.Error("Failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			t.logger.Error("Failed to parse checkout session", "error", err)
			http.Error(w, "Failed to parse event data", http.StatusBadRequest)
			return
		}

		if session.ClientReferenceID == "" {
			t.logger.Error("Missing client reference ID", "session_id", session.ID)
			http.Error(w, "Missing client reference ID", http.StatusBadRequest)
			return
		}

		userID, err := strconv.ParseInt(session.ClientReferenceID, 10, 64)
		if err != nil {
			t.logger.Error("Invalid client reference ID", "error", err, "value", session.ClientReferenceID)
			http.Error(w, "Invalid client reference ID", http.StatusBadRequest)
			return
		}

		// Credit in the background to keep the webhook fast.
		go t.handleTopUpSuccess(userID)
		t.logger.Info("Top-up processing started", "user_id", userID, "session_id", session.ID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			t.logger.Error("Failed to parse payment intent", "error", err)
			break
		}
		t.logger.Error("Payment failed", "payment_id", intent.ID, "error", intent.LastPaymentError)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// handleTopUpSuccess credits a paid token pack and notifies the buyer.
// Private Telegram chats share the user's id, so the notification goes
// straight to userID.
func (t *TelegramBot) handleTopUpSuccess(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := t.router.CreditTokens(ctx, userID, t.router.TopUpTokens())
	if err != nil {
		t.logger.Error("Failed to credit token pack", "user_id", userID, "error", err)
		return
	}

	t.send(userID, reply)
}

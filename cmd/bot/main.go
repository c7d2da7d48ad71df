// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-ai-bot/config"
	"campus-ai-bot/internal/bot"
	"campus-ai-bot/internal/db"
	"campus-ai-bot/internal/engine"
	"campus-ai-bot/internal/llm"
	"campus-ai-bot/internal/models"
	"campus-ai-bot/internal/payment"
	"campus-ai-bot/internal/server"
	"campus-ai-bot/internal/session"
	"campus-ai-bot/pkg/logger"
)

func main() {
	l := logger.New()
	l.Info("Starting Campus AI Bot...")

	cfg, err := config.Load()
	if err != nil {
		l.Fatal("Failed to load config", err)
	}

	if cfg.Telegram.Token == "" {
		l.Fatal("Telegram token is not configured")
	}
	if cfg.Models.OpenAIKey == "" {
		l.Fatal("OpenAI API key is not configured")
	}

	// Initialize database connection with retry
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Error("Failed to connect to database, retrying...", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatal("Failed to connect to database after multiple attempts", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(context.Background()); err != nil {
		l.Fatal("Failed to ensure database schema", err)
	}

	// Session storage: Redis when reachable, in-process otherwise.
	var sessionStore session.Store
	rdb, err := session.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		l.Error("Redis unavailable, falling back to in-memory sessions", err)
		sessionStore = session.NewMemoryStore()
	} else {
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb, cfg.Redis.SessionTTL)
	}
	machine := session.NewMachine(sessionStore)

	backends := llm.Registry{
		models.ModelGPT4o:    llm.NewGPT4o(cfg.Models.OpenAIKey, cfg.Models.GPT4oModel),
		models.ModelLlama3:   llm.NewLlama3(cfg.Models.Llama3URL, cfg.Models.Llama3Key, cfg.Models.Llama3Model),
		models.ModelScripted: llm.NewScripted(),
	}

	router := engine.NewRouter(database, machine, backends, engine.RouterOptions{
		Costs: engine.Costs{
			models.ModelGPT4o:    cfg.Billing.GPT4oCost,
			models.ModelLlama3:   cfg.Billing.Llama3Cost,
			models.ModelScripted: cfg.Billing.ScriptedCost,
		},
		RequestTimeout: cfg.Models.RequestTimeout,
		DeductRetries:  cfg.Billing.DeductRetries,
		TopUpTokens:    cfg.Billing.TopUpTokens,
	}, l)
	admin := engine.NewAdmin(database, machine, l)

	stripeClient := payment.NewStripeClient(cfg.Stripe)

	telegramBot, err := bot.NewTelegramBot(cfg.Telegram.Token, router, admin, stripeClient, l)
	if err != nil {
		l.Fatal("Failed to create Telegram bot", err)
	}

	l.Info("Starting Telegram bot...")
	if err := telegramBot.Start(context.Background()); err != nil {
		l.Fatal("Failed to start Telegram bot", err)
	}
	l.Info("Telegram bot started successfully")

	// Start webhook server
	httpServer := server.NewServer(cfg.Server.Port, telegramBot, l)
	go func() {
		l.Info("Starting HTTP server...")
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start HTTP server", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down bot...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Error("Error during HTTP server shutdown", err)
	}

	if err := telegramBot.Stop(ctx); err != nil {
		l.Error("Error during bot shutdown", err)
	}

	l.Info("Bot stopped successfully")
}

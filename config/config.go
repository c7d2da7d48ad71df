// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram struct {
		Token string
	}
	DB struct {
		Host         string
		Port         string
		User         string
		Password     string
		DBName       string
		SSLMode      string
		MaxOpenConns int
		MaxIdleConns int
		ConnLifetime time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		// SessionTTL bounds how long an abandoned conversation keeps
		// its state; zero means the state never expires.
		SessionTTL time.Duration
	}
	Models struct {
		OpenAIKey   string
		GPT4oModel  string
		Llama3URL   string
		Llama3Key   string
		Llama3Model string
		// RequestTimeout bounds a single completion call so a hung
		// backend cannot pin a user's turn forever.
		RequestTimeout time.Duration
	}
	Billing struct {
		// Per-call token cost by model variant.
		GPT4oCost    int64
		Llama3Cost   int64
		ScriptedCost int64
		// DeductRetries is the retry budget for a conflicting
		// balance decrement before the turn is failed.
		DeductRetries int
		// TopUpTokens is how many tokens one paid pack credits.
		TopUpTokens int64
	}
	Stripe struct {
		SecretKey  string
		PublicKey  string
		WebhookKey string
		ProductID  string
		PriceID    string
	}
	Server struct {
		Port string
	}
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.campus-ai-bot")

	// Defaults for every tunable.
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.SessionTTL", 24*time.Hour)
	v.SetDefault("Models.GPT4oModel", "gpt-4o")
	v.SetDefault("Models.Llama3Model", "llama3-70b")
	v.SetDefault("Models.RequestTimeout", 60*time.Second)
	v.SetDefault("Billing.GPT4oCost", 100)
	v.SetDefault("Billing.Llama3Cost", 150)
	v.SetDefault("Billing.ScriptedCost", 50)
	v.SetDefault("Billing.DeductRetries", 3)
	v.SetDefault("Billing.TopUpTokens", 1000)

	v.AutomaticEnv()

	err := v.ReadInConfig()

	// No config file: assemble the config from environment variables
	// alone so a bare container still boots.
	if err != nil {
		cfg := &Config{}

		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
		cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
		cfg.DB.Port = getEnvOr("DB_PORT", "5432")
		cfg.DB.User = getEnvOr("DB_USER", "postgres")
		cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
		cfg.DB.DBName = getEnvOr("DB_NAME", "campus_ai_bot")
		cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
		cfg.DB.MaxOpenConns = 20
		cfg.DB.MaxIdleConns = 10
		cfg.DB.ConnLifetime = 5 * time.Minute
		cfg.Redis.Addr = getEnvOr("REDIS_ADDR", "localhost:6379")
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
		cfg.Redis.SessionTTL = 24 * time.Hour
		cfg.Models.OpenAIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Models.GPT4oModel = getEnvOr("GPT4O_MODEL", "gpt-4o")
		cfg.Models.Llama3URL = os.Getenv("LLAMA3_BASE_URL")
		cfg.Models.Llama3Key = os.Getenv("LLAMA3_API_KEY")
		cfg.Models.Llama3Model = getEnvOr("LLAMA3_MODEL", "llama3-70b")
		cfg.Models.RequestTimeout = 60 * time.Second
		cfg.Billing.GPT4oCost = 100
		cfg.Billing.Llama3Cost = 150
		cfg.Billing.ScriptedCost = 50
		cfg.Billing.DeductRetries = 3
		cfg.Billing.TopUpTokens = 1000
		cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
		cfg.Stripe.PublicKey = os.Getenv("STRIPE_PUBLIC_KEY")
		cfg.Stripe.WebhookKey = os.Getenv("STRIPE_WEBHOOK_KEY")
		cfg.Stripe.ProductID = os.Getenv("STRIPE_PRODUCT_ID")
		cfg.Stripe.PriceID = os.Getenv("STRIPE_PRICE_ID")
		cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
		cfg.ShutdownTimeout = 10 * time.Second

		return cfg, nil
	}

	// Expand ${ENV_VAR} placeholders inside the config file.
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			envValue := os.Getenv(envVar)
			if envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"campus-ai-bot/internal/models"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the users table if it does not exist yet.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS users (
            user_id            BIGINT PRIMARY KEY,
            username           TEXT NOT NULL DEFAULT '',
            full_name          TEXT NOT NULL DEFAULT '',
            language           TEXT NOT NULL DEFAULT 'ru',
            chat_model         TEXT NOT NULL DEFAULT 'gpt4o',
            gpt4o_access       BOOLEAN NOT NULL DEFAULT TRUE,
            llama3_access      BOOLEAN NOT NULL DEFAULT TRUE,
            scripted_access    BOOLEAN NOT NULL DEFAULT TRUE,
            token_balance      BIGINT NOT NULL DEFAULT 0 CHECK (token_balance >= 0),
            is_admin           BOOLEAN NOT NULL DEFAULT FALSE,
            banned             BOOLEAN NOT NULL DEFAULT FALSE,
            agreement_approved BOOLEAN NOT NULL DEFAULT FALSE,
            registered_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_interaction   TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `

	if _, err := db.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

const userColumns = `
        user_id, username, full_name, language, chat_model,
        gpt4o_access, llama3_access, scripted_access,
        token_balance, is_admin, banned, agreement_approved,
        registered_at, last_interaction`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.UserID, &user.Username, &user.FullName, &user.Language, &user.ChatModel,
		&user.GPT4oAccess, &user.Llama3Access, &user.ScriptedAccess,
		&user.TokenBalance, &user.IsAdmin, &user.Banned, &user.AgreementApproved,
		&user.RegisteredAt, &user.LastInteraction,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns the user's profile, or (nil, nil) when no row exists.
func (db *PostgresDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(db.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateUserIfAbsent registers the user on first contact. A repeated
// call for the same id returns the existing record with preexisting
// true; the display fields are refreshed from the platform metadata
// either way.
func (db *PostgresDB) CreateUserIfAbsent(ctx context.Context, userID int64, username, fullName string) (*models.User, bool, error) {
	query := `
        INSERT INTO users (user_id, username, full_name)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE
        SET username = $2, full_name = $3, last_interaction = NOW()
        RETURNING (xmax = 0) AS inserted,` + userColumns

	var inserted bool
	var user models.User
	err := db.pool.QueryRow(ctx, query, userID, username, fullName).Scan(
		&inserted,
		&user.UserID, &user.Username, &user.FullName, &user.Language, &user.ChatModel,
		&user.GPT4oAccess, &user.Llama3Access, &user.ScriptedAccess,
		&user.TokenBalance, &user.IsAdmin, &user.Banned, &user.AgreementApproved,
		&user.RegisteredAt, &user.LastInteraction,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &user, !inserted, nil
}

func (db *PostgresDB) setField(ctx context.Context, userID int64, column string, value interface{}) (bool, error) {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, last_interaction = NOW() WHERE user_id = $1`, column)

	tag, err := db.pool.Exec(ctx, query, userID, value)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", column, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *PostgresDB) SetLanguage(ctx context.Context, userID int64, lang string) (bool, error) {
	return db.setField(ctx, userID, "language", lang)
}

func (db *PostgresDB) SetChatModel(ctx context.Context, userID int64, variant models.ModelVariant) (bool, error) {
	return db.setField(ctx, userID, "chat_model", string(variant))
}

func (db *PostgresDB) SetAgreementApproved(ctx context.Context, userID int64, approved bool) (bool, error) {
	return db.setField(ctx, userID, "agreement_approved", approved)
}

func (db *PostgresDB) SetBanned(ctx context.Context, userID int64, banned bool) (bool, error) {
	return db.setField(ctx, userID, "banned", banned)
}

func accessColumn(variant models.ModelVariant) string {
	switch variant {
	case models.ModelGPT4o:
		return "gpt4o_access"
	case models.ModelLlama3:
		return "llama3_access"
	default:
		return "scripted_access"
	}
}

func (db *PostgresDB) SetAccess(ctx context.Context, userID int64, variant models.ModelVariant, on bool) (bool, error) {
	return db.setField(ctx, userID, accessColumn(variant), on)
}

// SetBalance overwrites the token balance unconditionally. This is the
// administrative path; metered consumption goes through DeductBalance.
func (db *PostgresDB) SetBalance(ctx context.Context, userID int64, balance int64) (bool, error) {
	if balance < 0 {
		return false, fmt.Errorf("balance must be non-negative, got %d", balance)
	}
	return db.setField(ctx, userID, "token_balance", balance)
}

// DeductBalance subtracts amount from the user's balance only if the
// balance covers it. The decrement is a single conditional statement,
// so concurrent deductions and admin overwrites cannot underflow the
// balance or lose an update.
func (db *PostgresDB) DeductBalance(ctx context.Context, userID int64, amount int64) (bool, error) {
	query := `
        UPDATE users
        SET token_balance = token_balance - $2, last_interaction = NOW()
        WHERE user_id = $1 AND token_balance >= $2
    `

	tag, err := db.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to deduct balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreditBalance adds amount to the user's balance atomically.
func (db *PostgresDB) CreditBalance(ctx context.Context, userID int64, amount int64) (bool, error) {
	query := `
        UPDATE users
        SET token_balance = token_balance + $2
        WHERE user_id = $1
    `

	tag, err := db.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to credit balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *PostgresDB) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// DeleteUser removes the user's row. Maintenance path only; the bot
// never deletes users during normal operation.
func (db *PostgresDB) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// internal/engine/store.go
package engine

import (
	"context"

	"campus-ai-bot/internal/models"
)

// UserStore is the durable per-user profile store consumed by the
// engines. GetUser returns (nil, nil) for unknown users. Boolean
// results report whether the row existed. DeductBalance is conditional:
// it succeeds only if the balance covers the amount, so the balance can
// never go negative regardless of concurrent writers.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateUserIfAbsent(ctx context.Context, userID int64, username, fullName string) (*models.User, bool, error)

	SetLanguage(ctx context.Context, userID int64, lang string) (bool, error)
	SetChatModel(ctx context.Context, userID int64, variant models.ModelVariant) (bool, error)
	SetAgreementApproved(ctx context.Context, userID int64, approved bool) (bool, error)
	SetBanned(ctx context.Context, userID int64, banned bool) (bool, error)
	SetAccess(ctx context.Context, userID int64, variant models.ModelVariant, on bool) (bool, error)

	SetBalance(ctx context.Context, userID int64, balance int64) (bool, error)
	DeductBalance(ctx context.Context, userID int64, amount int64) (bool, error)
	CreditBalance(ctx context.Context, userID int64, amount int64) (bool, error)

	CountUsers(ctx context.Context) (int64, error)
	DeleteUser(ctx context.Context, userID int64) (bool, error)
}

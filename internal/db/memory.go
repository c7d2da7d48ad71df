package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-ai-bot/internal/models"
)

// MemoryStore is an in-process user store with the same semantics as
// PostgresDB, including the conditional balance decrement. Used in
// tests and local development without a database.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*models.User)}
}

func (s *MemoryStore) GetUser(_ context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (s *MemoryStore) CreateUserIfAbsent(_ context.Context, userID int64, username, fullName string) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		user.Username = username
		user.FullName = fullName
		user.LastInteraction = time.Now()
		copy := *user
		return &copy, true, nil
	}

	now := time.Now()
	user := &models.User{
		UserID:          userID,
		Username:        username,
		FullName:        fullName,
		Language:        "ru",
		ChatModel:       models.ModelGPT4o,
		GPT4oAccess:     true,
		Llama3Access:    true,
		ScriptedAccess:  true,
		RegisteredAt:    now,
		LastInteraction: now,
	}
	s.users[userID] = user
	copy := *user
	return &copy, false, nil
}

func (s *MemoryStore) update(userID int64, fn func(*models.User)) bool {
	user, ok := s.users[userID]
	if !ok {
		return false
	}
	fn(user)
	user.LastInteraction = time.Now()
	return true
}

func (s *MemoryStore) SetLanguage(_ context.Context, userID int64, lang string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.Language = lang }), nil
}

func (s *MemoryStore) SetChatModel(_ context.Context, userID int64, variant models.ModelVariant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.ChatModel = variant }), nil
}

func (s *MemoryStore) SetAgreementApproved(_ context.Context, userID int64, approved bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.AgreementApproved = approved }), nil
}

// SetAdmin grants or revokes the admin flag. The flag is never touched
// by the conversational flow; this mirrors the out-of-band maintenance
// update done directly against the production database.
func (s *MemoryStore) SetAdmin(_ context.Context, userID int64, isAdmin bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.IsAdmin = isAdmin }), nil
}

func (s *MemoryStore) SetBanned(_ context.Context, userID int64, banned bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.Banned = banned }), nil
}

func (s *MemoryStore) SetAccess(_ context.Context, userID int64, variant models.ModelVariant, on bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) {
		switch variant {
		case models.ModelGPT4o:
			u.GPT4oAccess = on
		case models.ModelLlama3:
			u.Llama3Access = on
		case models.ModelScripted:
			u.ScriptedAccess = on
		}
	}), nil
}

func (s *MemoryStore) SetBalance(_ context.Context, userID int64, balance int64) (bool, error) {
	if balance < 0 {
		return false, fmt.Errorf("balance must be non-negative, got %d", balance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.TokenBalance = balance }), nil
}

func (s *MemoryStore) DeductBalance(_ context.Context, userID int64, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok || user.TokenBalance < amount {
		return false, nil
	}
	user.TokenBalance -= amount
	user.LastInteraction = time.Now()
	return true, nil
}

func (s *MemoryStore) CreditBalance(_ context.Context, userID int64, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, func(u *models.User) { u.TokenBalance += amount }), nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return false, nil
	}
	delete(s.users, userID)
	return true, nil
}

// internal/models/user.go
package models

import (
	"time"
)

// ModelVariant identifies one of the completion backends a user can be
// routed to.
type ModelVariant string

const (
	ModelGPT4o    ModelVariant = "gpt4o"
	ModelLlama3   ModelVariant = "llama3"
	ModelScripted ModelVariant = "scripted"
)

// Variants lists every routable model variant.
var Variants = []ModelVariant{ModelGPT4o, ModelLlama3, ModelScripted}

// Valid reports whether v names a known model variant.
func (v ModelVariant) Valid() bool {
	switch v {
	case ModelGPT4o, ModelLlama3, ModelScripted:
		return true
	}
	return false
}

type User struct {
	UserID            int64        `json:"user_id"`
	Username          string       `json:"username"`
	FullName          string       `json:"full_name"`
	Language          string       `json:"language"` // "ru" or "en"
	ChatModel         ModelVariant `json:"chat_model"`
	GPT4oAccess       bool         `json:"gpt4o_access"`
	Llama3Access      bool         `json:"llama3_access"`
	ScriptedAccess    bool         `json:"scripted_access"`
	TokenBalance      int64        `json:"token_balance"`
	IsAdmin           bool         `json:"is_admin"`
	Banned            bool         `json:"banned"`
	AgreementApproved bool         `json:"agreement_approved"`
	RegisteredAt      time.Time    `json:"registered_at"`
	LastInteraction   time.Time    `json:"last_interaction"`
}

// HasAccess reports whether the user's access flag for the given
// variant is on.
func (u *User) HasAccess(v ModelVariant) bool {
	switch v {
	case ModelGPT4o:
		return u.GPT4oAccess
	case ModelLlama3:
		return u.Llama3Access
	case ModelScripted:
		return u.ScriptedAccess
	}
	return false
}

// Package services implements the conversation flows of Don Confiado: intent
// routing, general chat and the slot-filling registration of distributors
// and products. This file centralizes common service-level error values.
//
// Model failures surface as the llm package's sentinel errors, wrapped.
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrEmptyUserID is returned when a request carries no user id.
	ErrEmptyUserID = errors.New("user id is empty")

	// ErrEmptyMessage is returned when the user message is blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when the message exceeds the configured
	// rune limit.
	ErrMessageTooLong = errors.New("message too long")
)

// MissingCredentialsText is the envelope error when the persistence backend
// has no credentials. Clients match on it.
const MissingCredentialsText = "Missing Supabase credentials"

// Package handlers implements the HTTP endpoints of the chat API.
//
// This file lists the machine-readable error codes carried by ErrorResponse.
// Codes are lowercase snake_case. Clients branch on the code, never on the
// message text.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "request_too_large"

	// ErrCodeModelFailed means the language model call failed or returned an
	// answer that does not fit the expected shape. Retrying may succeed.
	ErrCodeModelFailed = "model_failed"
	// ErrCodeChatFailed covers any other failure while producing a reply.
	ErrCodeChatFailed = "chat_failed"
)

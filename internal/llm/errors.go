// Package llm is the generative-model transport. It hides the provider SDKs
// behind the Model interface and validates structured output at the boundary
// so callers only ever see typed results or typed errors.
package llm

import "errors"

var (
	// ErrModelInvoke wraps any transport or provider failure.
	ErrModelInvoke = errors.New("model invoke failed")
	// ErrSchemaViolation means the model returned output that does not match
	// the requested structure.
	ErrSchemaViolation = errors.New("model response violates schema")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrMissingAPIKey is returned at construction time when the selected
	// provider has no credential configured.
	ErrMissingAPIKey = errors.New("model API key is not configured")
	// ErrUnknownProvider is returned for an unsupported LLM_PROVIDER value.
	ErrUnknownProvider = errors.New("unknown model provider")
)

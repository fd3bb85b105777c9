// Package domain defines the conversation, intent, schema, and record types
// shared by the memory, service, repository, and HTTP layers.
package domain

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Label returns the transcript label for r. ok is false for roles that are
// not rendered.
func (r Role) Label() (label string, ok bool) {
	switch r {
	case RoleHuman:
		return "Usuario", true
	case RoleAI:
		return "Asistente", true
	default:
		return "", false
	}
}

// Turn is a single utterance in a user's conversation. Turns are never
// modified after they are appended.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

package conversation

import (
	"time"

	"coldcall-platform/internal/contact"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the per-call conversational state. One exists per call id while
// the call is in flight; the engine owns it exclusively.
type State struct {
	CallID  string
	Contact contact.Contact
	History []Turn

	// CurrentStep marks the phase of the script; only "introduction" is
	// distinguished today.
	CurrentStep string

	Active          bool
	OptOutRequested bool
}

// Summary is the terminal snapshot written to the conversation log when a
// call ends.
type Summary struct {
	CallID          string          `json:"call_id"`
	Contact         contact.Contact `json:"contact"`
	TurnCount       int             `json:"turn_count"`
	OptOutRequested bool            `json:"opt_out_requested"`
	History         []Turn          `json:"conversation_history"`
}

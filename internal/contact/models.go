package contact

import (
	"fmt"
	"strings"
)

// Contact is one row of the contact ledger: identity, compliance and
// scheduling attributes for a single callee.
//
// PhoneNumber is the unique key. Contacts are never deleted; they only
// transition status after call attempts.
type Contact struct {
	PhoneNumber     string     `json:"phone_number"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Company         string     `json:"company,omitempty"`
	Status          CallStatus `json:"status"`
	CallAttempts    int        `json:"call_attempts"`
	ConsentObtained bool       `json:"consent_obtained"`

	// OptOutDate is empty until the callee opts out. Kept as the raw
	// string from the ledger; only emptiness matters for compliance.
	OptOutDate string `json:"opt_out_date,omitempty"`

	// PromptName selects the conversation persona. Falls back to
	// "default" when the named template does not exist.
	PromptName string `json:"prompt_name"`
}

// CallStatus is the closed set of ledger states.
//
// pending -> calling -> {completed | failed | opted_out}
// Only pending is re-enterable.
type CallStatus string

const (
	StatusPending   CallStatus = "pending"
	StatusCalling   CallStatus = "calling"
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
	StatusOptedOut  CallStatus = "opted_out"
)

func (s CallStatus) String() string { return string(s) }

// ParseCallStatus validates a stored status string. Unknown values are an
// error, never a silent default.
func ParseCallStatus(s string) (CallStatus, error) {
	switch CallStatus(s) {
	case StatusPending, StatusCalling, StatusCompleted, StatusFailed, StatusOptedOut:
		return CallStatus(s), nil
	default:
		return "", fmt.Errorf("contact: unknown call status %q", s)
	}
}

// NormalizePhone canonicalizes a phone number for do-not-call comparison:
// strip everything but digits, assume US country code for bare 10-digit
// numbers, prefix "+". The normalized form is never written back to the
// ledger.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits
}

package ledger

import (
	"context"
	"errors"

	"coldcall-platform/internal/contact"
)

// ErrNotFound is returned by UpdateStatus when no contact matches the
// phone number.
var ErrNotFound = errors.New("ledger: contact not found")

// Ledger is the durable store of contacts and their call status.
//
// Implementations must serialize UpdateStatus internally: concurrent call
// tasks update different contacts and must not lose each other's writes.
type Ledger interface {
	Load(ctx context.Context) ([]contact.Contact, error)
	Save(ctx context.Context, contacts []contact.Contact) error

	// UpdateStatus transitions a single contact's status, optionally
	// incrementing its attempt counter.
	UpdateStatus(ctx context.Context, phoneNumber string, status contact.CallStatus, incrementAttempts bool) error
}

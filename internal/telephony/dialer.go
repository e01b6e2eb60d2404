package telephony

import (
	"context"
	"time"
)

// Dialer places outbound calls through the carrier.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; the orchestrator never
//   sees Twilio types.
type Dialer interface {
	// PlaceCall dials To and, once answered, points the carrier at
	// CallbackURL for call control.
	PlaceCall(ctx context.Context, req CallRequest) (CallRef, error)
}

// CallRequest describes one outbound call attempt.
type CallRequest struct {
	To   string
	From string

	// CallbackURL serves TwiML for the answered call; it embeds the call id.
	CallbackURL string

	// Timeout bounds how long the carrier lets the call ring/run.
	Timeout time.Duration
}

// CallRef identifies a placed call at the provider.
type CallRef struct {
	SID    string
	Status string
}

package telephony

import (
	"net/http"
	"strings"
)

// TwilioGatherForm captures the subset of Gather-callback fields the
// conversation loop cares about. Twilio posts
// application/x-www-form-urlencoded by default.
//
// Keep this provider-adapter-only; no conversation logic here.
type TwilioGatherForm struct {
	CallSid      string
	From         string
	To           string
	CallStatus   string
	SpeechResult string
	Confidence   string
}

func ParseTwilioGather(r *http.Request) (TwilioGatherForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioGatherForm{}, err
	}
	return TwilioGatherForm{
		CallSid:      r.PostFormValue("CallSid"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		CallStatus:   r.PostFormValue("CallStatus"),
		SpeechResult: r.PostFormValue("SpeechResult"),
		Confidence:   r.PostFormValue("Confidence"),
	}, nil
}

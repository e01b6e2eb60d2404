package telephony

import (
	"context"
	"fmt"

	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	client *twilio.RestClient
}

func NewTwilioDialer(accountSID, authToken string) *TwilioDialer {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioDialer{client: client}
}

func (d *TwilioDialer) PlaceCall(ctx context.Context, req CallRequest) (CallRef, error) {
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.CallbackURL)
	if req.Timeout > 0 {
		params.SetTimeout(int(req.Timeout.Seconds()))
	}

	resp, err := d.client.Api.CreateCall(params)
	if err != nil {
		return CallRef{}, fmt.Errorf("telephony: create call to %s: %w", req.To, err)
	}

	ref := CallRef{}
	if resp.Sid != nil {
		ref.SID = *resp.Sid
	}
	if resp.Status != nil {
		ref.Status = *resp.Status
	}
	return ref, nil
}

package telephony

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioClient implements Provider over the Twilio REST API.
// A client built without credentials refuses every request with ErrProviderNotConfigured.
type TwilioClient struct {
	client     *twilio.RestClient
	accountSID string
}

func NewTwilioClient(accountSID, authToken string) *TwilioClient {
	if accountSID == "" || authToken == "" {
		return &TwilioClient{}
	}
	return &TwilioClient{
		client:     twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		accountSID: accountSID,
	}
}

// Configured reports whether credentials were supplied.
func (c *TwilioClient) Configured() bool {
	return c != nil && c.client != nil
}

func (c *TwilioClient) PlaceCall(ctx context.Context, to, from, twiml string) (string, error) {
	if !c.Configured() {
		return "", ErrProviderNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetTwiml(twiml)

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

func (c *TwilioClient) SendMessage(ctx context.Context, to, from, body string) (string, error) {
	if !c.Configured() {
		return "", ErrProviderNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

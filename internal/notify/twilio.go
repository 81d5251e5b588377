package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	twilioAPIBase    = "https://api.twilio.com/2010-04-01"
	twilioVerifyBase = "https://verify.twilio.com/v2"
)

func newTwilioClient(accountSID, authToken string) *resty.Client {
	return resty.New().
		SetRetryCount(3).
		SetTimeout(10 * time.Second).
		SetBasicAuth(accountSID, authToken)
}

// TwilioSMS sends verification codes as plain SMS messages.
type TwilioSMS struct {
	client     *resty.Client
	accountSID string
	from       string
}

func NewTwilioSMS(accountSID, authToken, from string) *TwilioSMS {
	return &TwilioSMS{
		client:     newTwilioClient(accountSID, authToken),
		accountSID: accountSID,
		from:       from,
	}
}

func (t *TwilioSMS) SendVerificationCode(ctx context.Context, phone, code string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phone,
			"From": t.from,
			"Body": fmt.Sprintf("Your Campus Lost & Found verification code is: %s", code),
		}).
		Post(fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, t.accountSID))
	if err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio send failed: status %d", resp.StatusCode())
	}
	return nil
}

// TwilioVerify delegates the full challenge cycle to the Twilio Verify
// service; no code is generated or stored locally.
type TwilioVerify struct {
	client     *resty.Client
	serviceSID string
}

func NewTwilioVerify(accountSID, authToken, serviceSID string) *TwilioVerify {
	return &TwilioVerify{
		client:     newTwilioClient(accountSID, authToken),
		serviceSID: serviceSID,
	}
}

func (t *TwilioVerify) StartVerification(ctx context.Context, phone string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":      phone,
			"Channel": "sms",
		}).
		Post(fmt.Sprintf("%s/Services/%s/Verifications", twilioVerifyBase, t.serviceSID))
	if err != nil {
		return fmt.Errorf("verify start failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("verify start failed: status %d", resp.StatusCode())
	}
	return nil
}

func (t *TwilioVerify) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	var result struct {
		Status string `json:"status"`
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phone,
			"Code": code,
		}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/Services/%s/VerificationCheck", twilioVerifyBase, t.serviceSID))
	if err != nil {
		return false, fmt.Errorf("verify check failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("verify check failed: status %d", resp.StatusCode())
	}

	return result.Status == "approved", nil
}

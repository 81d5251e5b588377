package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendVerificationCode(toEmail, toName, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your Campus Lost & Found verification code"
	html := fmt.Sprintf(`
		<h2>Verify your account</h2>
		<p>Hi %s,</p>
		<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, toName, code)

	text := fmt.Sprintf("Your verification code is: %s", code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	_, err := m.client.Email.Send(ctx, msg)
	return err
}

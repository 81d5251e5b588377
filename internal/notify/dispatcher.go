package notify

import (
	"context"

	"github.com/campuskeep/lostfound/pkg/config"
	"github.com/campuskeep/lostfound/pkg/logger"
)

// Dispatcher is the single entry point the engine uses to send codes. Any
// transport failure degrades to the dev fallback; a notification outage
// never fails the operation that triggered it.
type Dispatcher struct {
	mailer  Mailer
	sms     SMSSender
	devMail *DevMailer
	devSMS  *DevSMS
}

func NewDispatcher(mailer Mailer, sms SMSSender) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		sms:     sms,
		devMail: NewDevMailer(),
		devSMS:  NewDevSMS(),
	}
}

// FromConfig selects transports: dev mode short-circuits to log output,
// otherwise MailerSend wins over SMTP when both are configured.
func FromConfig(cfg *config.Config) *Dispatcher {
	var mailer Mailer
	switch {
	case cfg.Email.DevMode:
		mailer = NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		mailer = NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		mailer = NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}

	var sms SMSSender
	if !cfg.SMS.DevMode && cfg.SMS.TwilioAccountSID != "" {
		sms = NewTwilioSMS(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.TwilioFrom)
	} else {
		sms = NewDevSMS()
	}

	return NewDispatcher(mailer, sms)
}

// ProviderFromConfig returns the delegated verification provider, or nil
// when phone challenges are handled locally.
func ProviderFromConfig(cfg *config.Config) Provider {
	if cfg.SMS.VerifyServiceSID == "" {
		return nil
	}
	return NewTwilioVerify(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.VerifyServiceSID)
}

func (d *Dispatcher) SendEmailCode(ctx context.Context, toEmail, toName, code string) {
	if err := d.mailer.SendVerificationCode(toEmail, toName, code); err != nil {
		logger.WarnContext(ctx, "Email dispatch failed, falling back to local output",
			"error", err, "to", toEmail)
		_ = d.devMail.SendVerificationCode(toEmail, toName, code)
	}
}

func (d *Dispatcher) SendSMSCode(ctx context.Context, phone, code string) {
	if err := d.sms.SendVerificationCode(ctx, phone, code); err != nil {
		logger.WarnContext(ctx, "SMS dispatch failed, falling back to local output",
			"error", err, "to", phone)
		_ = d.devSMS.SendVerificationCode(ctx, phone, code)
	}
}

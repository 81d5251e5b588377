package notify

import (
	"context"

	"github.com/campuskeep/lostfound/pkg/logger"
)

// DevMailer prints codes to the log instead of sending mail. It is both the
// development transport and the fallback when a real transport fails.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationCode(toEmail, toName, code string) error {
	logger.Info("[DEV MAIL] Verification code",
		"to", toEmail,
		"name", toName,
		"code", code,
	)
	return nil
}

// DevSMS is the SMS counterpart of DevMailer.
type DevSMS struct{}

func NewDevSMS() *DevSMS {
	return &DevSMS{}
}

func (d *DevSMS) SendVerificationCode(ctx context.Context, phone, code string) error {
	logger.InfoContext(ctx, "[DEV SMS] Verification code",
		"to", phone,
		"code", code,
	)
	return nil
}

package notify

import "context"

// Mailer delivers a verification code over email.
type Mailer interface {
	SendVerificationCode(toEmail, toName, code string) error
}

// SMSSender delivers a verification code over SMS.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
}

// Provider owns the full challenge/response cycle for a phone channel. When
// a provider is configured the engine stores no local code.
type Provider interface {
	StartVerification(ctx context.Context, phone string) error
	CheckVerification(ctx context.Context, phone, code string) (bool, error)
}

package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/campuskeep/lostfound/internal/notify"
	"github.com/campuskeep/lostfound/internal/repo/postgres"
	"github.com/campuskeep/lostfound/pkg/config"
	"github.com/campuskeep/lostfound/pkg/events"
	"github.com/campuskeep/lostfound/pkg/logger"
)

// CodeDispatcher is what the engine needs from the notification layer.
// Dispatch is best-effort and never surfaces an error.
type CodeDispatcher interface {
	SendEmailCode(ctx context.Context, toEmail, toName, code string)
	SendSMSCode(ctx context.Context, phone, code string)
}

type AuthService interface {
	Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	Authenticate(ctx context.Context, campusID, password string) (*domain.User, error)
	VerifyEmailCode(ctx context.Context, email, code string) (bool, error)
	ResendEmailCode(ctx context.Context, email string) (bool, error)
	GeneratePhoneResetCode(ctx context.Context, phone string) (bool, error)
	VerifyPhoneCode(ctx context.Context, phone, code string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, user *domain.User, newPassword string) error
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type authService struct {
	userRepo   postgres.UserRepository
	dispatcher CodeDispatcher
	provider   notify.Provider // nil when phone challenges are local
	eventBus   events.Publisher
	cfg        *config.Config
}

func NewAuthService(
	userRepo postgres.UserRepository,
	dispatcher CodeDispatcher,
	provider notify.Provider,
	eventBus events.Publisher,
	cfg *config.Config,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		dispatcher: dispatcher,
		provider:   provider,
		eventBus:   eventBus,
		cfg:        cfg,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Pre-check uniqueness in a fixed order so the first conflict found
	// determines the message. The unique constraints re-check at write time.
	if existing, err := s.userRepo.FindByEmail(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	} else if existing != nil {
		return nil, domain.NewValidationError("email", domain.MsgEmailTaken)
	}

	if existing, err := s.userRepo.FindByCampusID(ctx, req.CampusID); err != nil {
		return nil, fmt.Errorf("failed to check existing campus ID: %w", err)
	} else if existing != nil {
		return nil, domain.NewValidationError("campus_id", domain.MsgCampusIDTaken)
	}

	if existing, err := s.userRepo.FindByPhone(ctx, req.Phone); err != nil {
		return nil, fmt.Errorf("failed to check existing phone: %w", err)
	} else if existing != nil {
		return nil, domain.NewValidationError("phone", domain.MsgPhoneTaken)
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	autoVerify := s.cfg.Auth.VerifyPolicy == config.VerifyPolicyNone

	user := &domain.User{
		CampusID:      req.CampusID,
		Email:         req.Email,
		Phone:         req.Phone,
		Name:          req.Name,
		Department:    req.Department,
		PasswordHash:  passwordHash,
		EmailVerified: autoVerify,
		PhoneVerified: autoVerify,
	}

	var emailCode, phoneCode string
	if !autoVerify {
		emailCode = generateCode()
		phoneCode = generateCode()
		user.EmailVerificationCode = &emailCode
		user.PhoneVerificationCode = &phoneCode
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// Concurrent registration races surface here as the same
		// field-specific ValidationError the pre-check produces.
		if _, ok := domain.IsValidationError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:     created.ID,
		CampusID:   created.CampusID,
		Email:      created.Email,
		Department: created.Department,
		CreatedAt:  created.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish registration event", "error", err, "user_id", created.ID)
	}

	// State is committed; dispatch after the fact and never roll back on
	// notification failure.
	if !autoVerify {
		s.dispatcher.SendEmailCode(ctx, created.Email, created.Name, emailCode)
		s.dispatcher.SendSMSCode(ctx, created.Phone, phoneCode)
	}

	return created, nil
}

// Authenticate does not distinguish an unknown campus ID from a wrong
// password; both come back as ErrNotFound.
func (s *authService) Authenticate(ctx context.Context, campusID, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByCampusID(ctx, campusID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	valid, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrNotFound
	}

	return user, nil
}

func (s *authService) VerifyEmailCode(ctx context.Context, email, code string) (bool, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return false, nil
	}

	// Already verified: idempotent success, no state change.
	if user.EmailVerified {
		return true, nil
	}

	if user.EmailVerificationCode == nil || *user.EmailVerificationCode != code {
		return false, nil
	}

	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}

	if err := s.eventBus.Publish(ctx, events.UserVerified, events.UserVerifiedEvent{
		UserID:     user.ID,
		Channel:    "email",
		VerifiedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish verification event", "error", err, "user_id", user.ID)
	}

	return true, nil
}

// ResendEmailCode unconditionally replaces any outstanding code; only the
// newest code verifies.
func (s *authService) ResendEmailCode(ctx context.Context, email string) (bool, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return false, nil
	}

	code := generateCode()
	if err := s.userRepo.SetEmailCode(ctx, user.ID, code); err != nil {
		return false, fmt.Errorf("failed to store verification code: %w", err)
	}

	s.dispatcher.SendEmailCode(ctx, user.Email, user.Name, code)
	return true, nil
}

func (s *authService) GeneratePhoneResetCode(ctx context.Context, phone string) (bool, error) {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return false, nil
	}

	if s.provider != nil {
		if err := s.provider.StartVerification(ctx, user.Phone); err == nil {
			// The provider owns this challenge. Any code left over from an
			// earlier flow must not shadow the provider's check.
			if user.PhoneVerificationCode != nil {
				if err := s.userRepo.ClearPhoneCode(ctx, user.ID); err != nil {
					return false, fmt.Errorf("failed to clear stale reset code: %w", err)
				}
			}
			return true, nil
		} else {
			logger.WarnContext(ctx, "Verification provider unavailable, issuing local code",
				"error", err, "user_id", user.ID)
		}
	}

	code := generateCode()
	if err := s.userRepo.SetPhoneCode(ctx, user.ID, code); err != nil {
		return false, fmt.Errorf("failed to store reset code: %w", err)
	}

	s.dispatcher.SendSMSCode(ctx, user.Phone, code)
	return true, nil
}

func (s *authService) VerifyPhoneCode(ctx context.Context, phone, code string) (*domain.User, error) {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	// A stored code means this challenge was issued and SMSed locally, at
	// registration or as the outage fallback; delegated challenges never
	// leave a code behind.
	if s.provider != nil && user.PhoneVerificationCode == nil {
		approved, err := s.provider.CheckVerification(ctx, user.Phone, code)
		if err != nil {
			return nil, fmt.Errorf("provider check failed: %w", err)
		}
		if !approved {
			return nil, domain.ErrInvalidCode
		}
	} else {
		if user.PhoneVerificationCode == nil || *user.PhoneVerificationCode != code {
			return nil, domain.ErrInvalidCode
		}
	}

	if !user.PhoneVerified {
		if err := s.userRepo.MarkPhoneVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark phone verified: %w", err)
		}
		user.PhoneVerified = true
	}

	return user, nil
}

// UpdateUserPassword rehashes the credential and clears any outstanding
// phone code, whether or not that code was the one just used.
func (s *authService) UpdateUserPassword(ctx context.Context, user *domain.User, newPassword string) error {
	passwordHash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.PhoneVerificationCode = nil
	return nil
}

func (s *authService) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// generateCode draws a 6-digit code uniformly from [100000, 999999].
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand failing means the process has bigger problems; fall
		// back to a time-derived code rather than refuse registration.
		return fmt.Sprintf("%06d", time.Now().UnixNano()%900000+100000)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

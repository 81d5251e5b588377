package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/campuskeep/lostfound/internal/utils"
)

type User struct {
	ID                    int64     `json:"id"`
	CampusID              string    `json:"campus_id"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	Name                  string    `json:"name"`
	Department            string    `json:"department"`
	PasswordHash          string    `json:"-"`
	EmailVerified         bool      `json:"email_verified"`
	EmailVerificationCode *string   `json:"-"`
	PhoneVerified         bool      `json:"phone_verified"`
	PhoneVerificationCode *string   `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type CreateUserRequest struct {
	Name       string `json:"name"`
	CampusID   string `json:"campus_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

type LoginRequest struct {
	CampusID string `json:"campus_id"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserInfo `json:"user"`
}

type UserInfo struct {
	ID            int64  `json:"id"`
	CampusID      string `json:"campus_id"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Department    string `json:"department"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResendEmailCodeRequest struct {
	Email string `json:"email"`
}

type ForgotPasswordRequest struct {
	Phone string `json:"phone"`
}

type VerifyResetCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type ResetPasswordRequest struct {
	Phone           string `json:"phone"`
	Code            string `json:"code,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

const MinPasswordLength = 6

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (r *CreateUserRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.CampusID = strings.TrimSpace(r.CampusID)
	r.Email = utils.NormalizeEmail(r.Email)
	r.Department = strings.TrimSpace(r.Department)
	r.Phone = utils.NormalizePhone(r.Phone)
}

func (r *CreateUserRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "name is required")
	}
	if r.CampusID == "" {
		return NewValidationError("campus_id", "campus ID is required")
	}
	if r.Email == "" {
		return NewValidationError("email", "email is required")
	}
	if !emailRegex.MatchString(r.Email) {
		return NewValidationError("email", "invalid email format")
	}
	if r.Password == "" {
		return NewValidationError("password", "password is required")
	}
	if len(r.Password) < MinPasswordLength {
		return NewValidationError("password", "Password must be at least 6 characters long.")
	}
	if r.Phone == "" {
		return NewValidationError("phone", "phone is required")
	}
	if !isValidPhone(r.Phone) {
		return NewValidationError("phone", "invalid phone format")
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.CampusID = strings.TrimSpace(r.CampusID)
}

func (r *LoginRequest) Validate() error {
	if r.CampusID == "" {
		return NewValidationError("campus_id", "campus ID is required")
	}
	if r.Password == "" {
		return NewValidationError("password", "password is required")
	}
	return nil
}

func (r *ResetPasswordRequest) Validate() error {
	if r.Phone == "" {
		return NewValidationError("phone", "phone is required")
	}
	if r.Password == "" || r.ConfirmPassword == "" {
		return NewValidationError("password", "please enter and confirm your new password")
	}
	if r.Password != r.ConfirmPassword {
		return NewValidationError("password", "Passwords do not match.")
	}
	if len(r.Password) < MinPasswordLength {
		return NewValidationError("password", "Password must be at least 6 characters long.")
	}
	return nil
}

func isValidPhone(phone string) bool {
	// Starts with + or digit; digits, spaces, hyphens, parentheses allowed.
	phoneRegex := regexp.MustCompile(`^[\+]?[\d\s\-\(\)]+$`)
	return phoneRegex.MatchString(phone) && len(phone) >= 7
}

// ToUserInfo strips credential and challenge state before the user leaves
// the engine.
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:            u.ID,
		CampusID:      u.CampusID,
		Email:         u.Email,
		Phone:         u.Phone,
		Name:          u.Name,
		Department:    u.Department,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
	}
}

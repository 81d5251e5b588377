package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/campuskeep/lostfound/internal/http/response"
	"github.com/campuskeep/lostfound/internal/platform/auth"
	"github.com/campuskeep/lostfound/internal/utils"
	"github.com/campuskeep/lostfound/pkg/config"
)

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	msg := "Registration successful."
	if h.cfg.Auth.VerifyPolicy == config.VerifyPolicyEmail {
		msg = "Registration successful. Please verify your email to log in."
	}

	response.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": msg,
		"user":    user.ToUserInfo(),
	})
}

// Login handles user authentication by campus ID
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		writeServiceError(w, err)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), req.CampusID, req.Password)
	if err != nil {
		// Unknown campus ID and wrong password are indistinguishable here.
		response.Unauthorized(w, "Invalid credentials. Please try again.")
		return
	}

	if h.cfg.Auth.VerifyPolicy == config.VerifyPolicyEmail && !user.EmailVerified {
		response.WriteError(w, http.StatusForbidden,
			"Please verify your email before logging in. A code was sent to your email.",
			"EMAIL_NOT_VERIFIED")
		return
	}

	token, err := auth.NewAccessToken(user.ID, user.CampusID, user.Email, h.cfg.Auth.JWTSecret, h.cfg.Auth.AccessTokenTTL)
	if err != nil {
		response.InternalError(w, "Failed to create session")
		return
	}

	response.WriteJSON(w, http.StatusOK, domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(h.cfg.Auth.AccessTokenTTL.Seconds()),
		User:        user.ToUserInfo(),
	})
}

// VerifyEmail handles email verification codes
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		response.BadRequest(w, "Please provide both email and verification code.")
		return
	}

	ok, err := h.authService.VerifyEmailCode(r.Context(), utils.NormalizeEmail(req.Email), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		response.WriteError(w, http.StatusBadRequest,
			"Invalid verification code or email. Please try again.", response.CodeInvalidCode)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully. You can now log in.",
	})
}

// ResendEmailCode issues a fresh email verification code
func (h *Handlers) ResendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendEmailCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "Please provide your email to resend the code.")
		return
	}

	ok, err := h.authService.ResendEmailCode(r.Context(), utils.NormalizeEmail(req.Email))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		response.NotFound(w, "Email not found. Please register first.")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "A new verification code has been sent to your email.",
	})
}

// ForgotPassword starts the phone reset challenge
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		response.BadRequest(w, "Please enter your phone number.")
		return
	}

	ok, err := h.authService.GeneratePhoneResetCode(r.Context(), utils.NormalizePhone(req.Phone))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		response.NotFound(w, "Phone number not found. Please check and try again.")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "A verification code has been sent to your phone.",
	})
}

// VerifyResetCode checks a phone reset code before the password form
func (h *Handlers) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyResetCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" || req.Code == "" {
		response.BadRequest(w, "Please provide your phone and the 6-digit code.")
		return
	}

	user, err := h.authService.VerifyPhoneCode(r.Context(), utils.NormalizePhone(req.Phone), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Code verified. You may now reset your password.",
		"user":    user.ToUserInfo(),
	})
}

// ResetPassword completes the phone reset flow
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	if err := req.Validate(); err != nil {
		writeServiceError(w, err)
		return
	}

	// A code in the body is re-checked; without one, verification is assumed
	// to have just completed and the user is resolved by phone.
	phone := utils.NormalizePhone(req.Phone)
	var user *domain.User
	var err error
	if req.Code != "" {
		user, err = h.authService.VerifyPhoneCode(r.Context(), phone, req.Code)
	} else {
		user, err = h.authService.FindByPhone(r.Context(), phone)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.authService.UpdateUserPassword(r.Context(), user, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated successfully. You can now log in.",
	})
}

package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/campuskeep/lostfound/pkg/config"
	"github.com/campuskeep/lostfound/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Enforce uniqueness atomically, like the storage constraints do.
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, domain.NewValidationError("email", domain.MsgEmailTaken)
		}
		if existing.CampusID == u.CampusID {
			return nil, domain.NewValidationError("campus_id", domain.MsgCampusIDTaken)
		}
		if existing.Phone == u.Phone {
			return nil, domain.NewValidationError("phone", domain.MsgPhoneTaken)
		}
	}

	stored := *u
	stored.ID = m.nextID
	m.nextID++
	m.users[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (m *mockUserRepo) findBy(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return m.findBy(func(u *domain.User) bool { return u.ID == id })
}

func (m *mockUserRepo) FindByCampusID(_ context.Context, campusID string) (*domain.User, error) {
	return m.findBy(func(u *domain.User) bool { return u.CampusID == campusID })
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.findBy(func(u *domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	return m.findBy(func(u *domain.User) bool { return u.Phone == phone })
}

func (m *mockUserRepo) SetEmailCode(_ context.Context, userID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].EmailVerificationCode = &code
	return nil
}

func (m *mockUserRepo) MarkEmailVerified(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].EmailVerified = true
	m.users[userID].EmailVerificationCode = nil
	return nil
}

func (m *mockUserRepo) SetPhoneCode(_ context.Context, userID int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PhoneVerificationCode = &code
	return nil
}

func (m *mockUserRepo) ClearPhoneCode(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PhoneVerificationCode = nil
	return nil
}

func (m *mockUserRepo) MarkPhoneVerified(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PhoneVerified = true
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].PasswordHash = passwordHash
	m.users[userID].PhoneVerificationCode = nil
	return nil
}

type mockDispatcher struct {
	mu         sync.Mutex
	emailCodes map[string]string // email -> last code dispatched
	smsCodes   map[string]string // phone -> last code dispatched
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		emailCodes: make(map[string]string),
		smsCodes:   make(map[string]string),
	}
}

func (m *mockDispatcher) SendEmailCode(_ context.Context, toEmail, _, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailCodes[toEmail] = code
}

func (m *mockDispatcher) SendSMSCode(_ context.Context, phone, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.smsCodes[phone] = code
}

type mockProvider struct {
	started  []string
	startErr error
	approved bool
	checkErr error
}

func (m *mockProvider) StartVerification(_ context.Context, phone string) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, phone)
	return nil
}

func (m *mockProvider) CheckVerification(_ context.Context, _, _ string) (bool, error) {
	return m.approved, m.checkErr
}

// ---------- Helpers ----------

var codePattern = regexp.MustCompile(`^\d{6}$`)

func testConfig(policy string) *config.Config {
	cfg := config.Load()
	cfg.Auth.VerifyPolicy = policy
	return cfg
}

func newTestService(policy string) (AuthService, *mockUserRepo, *mockDispatcher) {
	repo := newMockUserRepo()
	dispatcher := newMockDispatcher()
	svc := NewAuthService(repo, dispatcher, nil, events.NewNoopEventBus(), testConfig(policy))
	return svc, repo, dispatcher
}

func registerReq() *domain.CreateUserRequest {
	return &domain.CreateUserRequest{
		Name:       "A",
		CampusID:   "C1",
		Email:      "a@x.com",
		Password:   "secret1",
		Department: "CS",
		Phone:      "+1555000",
	}
}

// ---------- Register ----------

func TestRegisterSuccess(t *testing.T) {
	svc, repo, dispatcher := newTestService(config.VerifyPolicyEmail)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "C1", user.CampusID)
	assert.False(t, user.EmailVerified)
	assert.False(t, user.PhoneVerified)

	// Stored hash verifies the original password and rejects others.
	stored := repo.users[user.ID]
	ok, err := argon2id.ComparePasswordAndHash("secret1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = argon2id.ComparePasswordAndHash("wrong", stored.PasswordHash)
	require.NoError(t, err)
	assert.False(t, ok)

	// Two independent 6-digit codes were issued and dispatched.
	require.NotNil(t, stored.EmailVerificationCode)
	require.NotNil(t, stored.PhoneVerificationCode)
	assert.Regexp(t, codePattern, *stored.EmailVerificationCode)
	assert.Regexp(t, codePattern, *stored.PhoneVerificationCode)
	assert.Equal(t, *stored.EmailVerificationCode, dispatcher.emailCodes["a@x.com"])
	assert.Equal(t, *stored.PhoneVerificationCode, dispatcher.smsCodes["+1555000"])
}

func TestRegisterAutoVerifyPolicy(t *testing.T) {
	svc, repo, dispatcher := newTestService(config.VerifyPolicyNone)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	stored := repo.users[user.ID]
	assert.True(t, stored.EmailVerified)
	assert.True(t, stored.PhoneVerified)
	assert.Nil(t, stored.EmailVerificationCode)
	assert.Nil(t, stored.PhoneVerificationCode)
	assert.Empty(t, dispatcher.emailCodes)
	assert.Empty(t, dispatcher.smsCodes)
}

func TestRegisterConflicts(t *testing.T) {
	svc, repo, _ := newTestService(config.VerifyPolicyEmail)

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(*domain.CreateUserRequest)
		wantField string
		wantMsg   string
	}{
		{
			name:      "duplicate email",
			mutate:    func(r *domain.CreateUserRequest) { r.CampusID = "C2"; r.Phone = "+1555001" },
			wantField: "email",
			wantMsg:   domain.MsgEmailTaken,
		},
		{
			name:      "duplicate campus id",
			mutate:    func(r *domain.CreateUserRequest) { r.Email = "b@x.com"; r.Phone = "+1555001" },
			wantField: "campus_id",
			wantMsg:   domain.MsgCampusIDTaken,
		},
		{
			name:      "duplicate phone",
			mutate:    func(r *domain.CreateUserRequest) { r.Email = "b@x.com"; r.CampusID = "C2" },
			wantField: "phone",
			wantMsg:   domain.MsgPhoneTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registerReq()
			tt.mutate(req)

			_, err := svc.Register(context.Background(), req)
			ve, ok := domain.IsValidationError(err)
			require.True(t, ok, "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, tt.wantMsg, ve.Message)

			// No partial row persisted.
			assert.Len(t, repo.users, 1)
		})
	}
}

func TestRegisterConflictOrderEmailFirst(t *testing.T) {
	svc, _, _ := newTestService(config.VerifyPolicyEmail)

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	// Everything collides; the email conflict must win.
	_, err = svc.Register(context.Background(), registerReq())
	ve, ok := domain.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "email", ve.Field)
}

func TestRegisterValidation(t *testing.T) {
	svc, repo, _ := newTestService(config.VerifyPolicyEmail)

	tests := []struct {
		name   string
		mutate func(*domain.CreateUserRequest)
	}{
		{"short password", func(r *domain.CreateUserRequest) { r.Password = "abc" }},
		{"missing phone", func(r *domain.CreateUserRequest) { r.Phone = "" }},
		{"bad email", func(r *domain.CreateUserRequest) { r.Email = "not-an-email" }},
		{"missing campus id", func(r *domain.CreateUserRequest) { r.CampusID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registerReq()
			tt.mutate(req)

			_, err := svc.Register(context.Background(), req)
			_, ok := domain.IsValidationError(err)
			assert.True(t, ok, "expected ValidationError, got %v", err)
			assert.Empty(t, repo.users)
		})
	}
}

func TestRegisterConcurrentSameCampusID(t *testing.T) {
	svc, repo, _ := newTestService(config.VerifyPolicyEmail)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), registerReq())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		if _, ok := domain.IsValidationError(err); ok {
			conflicts++
		}
	}

	assert.Equal(t, 1, successes, "exactly one registration must win")
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, repo.users, 1)
}

// ---------- Authenticate ----------

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(config.VerifyPolicyEmail)

	_, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "C1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "C1", user.CampusID)

	// Wrong password and unknown account are the same outcome.
	_, err = svc.Authenticate(context.Background(), "C1", "wrong")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Authenticate(context.Background(), "NOPE", "secret1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------- Email verification ----------

func TestVerifyEmailCode(t *testing.T) {
	svc, repo, _ := newTestService(config.VerifyPolicyEmail)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	code := *repo.users[user.ID].EmailVerificationCode

	ok, err := svc.VerifyEmailCode(context.Background(), "a@x.com", "999999")
	require.NoError(t, err)
	assert.False(t, ok, "wrong code must not verify")
	assert.False(t, repo.users[user.ID].EmailVerified)

	ok, err = svc.VerifyEmailCode(context.Background(), "a@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, repo.users[user.ID].EmailVerified)
	assert.Nil(t, repo.users[user.ID].EmailVerificationCode, "code is cleared on use")

	// Idempotent once verified, whatever the code.
	ok, err = svc.VerifyEmailCode(context.Background(), "a@x.com", "000000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, repo.users[user.ID].EmailVerificationCode)
}

func TestVerifyEmailCodeUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(config.VerifyPolicyEmail)

	ok, err := svc.VerifyEmailCode(context.Background(), "nobody@x.com", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResendEmailCodeInvalidatesOldCode(t *testing.T) {
	svc, repo, dispatcher := newTestService(config.VerifyPolicyEmail)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	oldCode := *repo.users[user.ID].EmailVerificationCode

	ok, err := svc.ResendEmailCode(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)

	newCode := *repo.users[user.ID].EmailVerificationCode
	require.NotEqual(t, oldCode, newCode)
	assert.Equal(t, newCode, dispatcher.emailCodes["a@x.com"])

	ok, err = svc.VerifyEmailCode(context.Background(), "a@x.com", oldCode)
	require.NoError(t, err)
	assert.False(t, ok, "replaced code must no longer verify")

	ok, err = svc.VerifyEmailCode(context.Background(), "a@x.com", newCode)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResendEmailCodeUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(config.VerifyPolicyEmail)

	ok, err := svc.ResendEmailCode(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

// ---------- Phone reset ----------

func TestPhoneResetFlow(t *testing.T) {
	svc, repo, dispatcher := newTestService(config.VerifyPolicyEmail)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	ok, err := svc.GeneratePhoneResetCode(context.Background(), "+1555000")
	require.NoError(t, err)
	require.True(t, ok)

	code := *repo.users[user.ID].PhoneVerificationCode
	assert.Regexp(t, codePattern, code)
	assert.Equal(t, code, dispatcher.smsCodes["+1555000"])

	_, err = svc.VerifyPhoneCode(context.Background(), "+1555000", "000000")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	verified, err := svc.VerifyPhoneCode(context.Background(), "+1555000", code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.True(t, repo.users[user.ID].PhoneVerified)
}

func TestGeneratePhoneResetCodeUnknownPhone(t *testing.T) {
	svc, _, _ := newTestService(config.VerifyPolicyEmail)

	ok, err := svc.GeneratePhoneResetCode(context.Background(), "+0000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPhoneResetDelegatedToProvider(t *testing.T) {
	repo := newMockUserRepo()
	dispatcher := newMockDispatcher()
	provider := &mockProvider{approved: true}
	svc := NewAuthService(repo, dispatcher, provider, events.NewNoopEventBus(), testConfig(config.VerifyPolicyEmail))

	// Registration leaves a phone code on the row; delegation must not let
	// it shadow the provider's check.
	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)
	require.NotNil(t, repo.users[user.ID].PhoneVerificationCode)

	ok, err := svc.GeneratePhoneResetCode(context.Background(), "+1555000")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{"+1555000"}, provider.started)
	assert.Nil(t, repo.users[user.ID].PhoneVerificationCode, "stale local code is cleared when delegating")

	verified, err := svc.VerifyPhoneCode(context.Background(), "+1555000", "123456")
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	provider.approved = false
	_, err = svc.VerifyPhoneCode(context.Background(), "+1555000", "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestPhoneResetProviderDownFallsBackToLocalCode(t *testing.T) {
	repo := newMockUserRepo()
	dispatcher := newMockDispatcher()
	provider := &mockProvider{startErr: errors.New("verify api down"), approved: false}
	svc := NewAuthService(repo, dispatcher, provider, events.NewNoopEventBus(), testConfig(config.VerifyPolicyEmail))

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	ok, err := svc.GeneratePhoneResetCode(context.Background(), "+1555000")
	require.NoError(t, err)
	require.True(t, ok)

	// Local delivery took over: a code is stored and SMSed.
	code := repo.users[user.ID].PhoneVerificationCode
	require.NotNil(t, code)
	assert.Equal(t, *code, dispatcher.smsCodes["+1555000"])

	// The stored code wins over the (unreachable) provider.
	verified, err := svc.VerifyPhoneCode(context.Background(), "+1555000", *code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

// ---------- Password update ----------

func TestUpdateUserPasswordClearsPhoneCode(t *testing.T) {
	svc, repo, _ := newTestService(config.VerifyPolicyEmail)

	user, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err)

	// An outstanding code that was never used must still be invalidated.
	require.NoError(t, repo.SetPhoneCode(context.Background(), user.ID, "555555"))

	require.NoError(t, svc.UpdateUserPassword(context.Background(), user, "newsecret"))

	assert.Nil(t, repo.users[user.ID].PhoneVerificationCode)

	_, err = svc.Authenticate(context.Background(), "C1", "secret1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "old password must stop working")

	authed, err := svc.Authenticate(context.Background(), "C1", "newsecret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

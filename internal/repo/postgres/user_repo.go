package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/campuskeep/lostfound/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByCampusID(ctx context.Context, campusID string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	SetEmailCode(ctx context.Context, userID int64, code string) error
	MarkEmailVerified(ctx context.Context, userID int64) error
	SetPhoneCode(ctx context.Context, userID int64, code string) error
	ClearPhoneCode(ctx context.Context, userID int64) error
	MarkPhoneVerified(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, campus_id, email, phone, name, department, password_hash,
	email_verified, email_verification_code, phone_verified, phone_verification_code,
	created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.CampusID, &u.Email, &u.Phone, &u.Name, &u.Department, &u.PasswordHash,
		&u.EmailVerified, &u.EmailVerificationCode, &u.PhoneVerified, &u.PhoneVerificationCode,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	const q = `
		INSERT INTO users (campus_id, email, phone, name, department, password_hash,
			email_verified, email_verification_code, phone_verified, phone_verification_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := scanUser(r.pool.QueryRow(ctx, q,
		u.CampusID, u.Email, u.Phone, u.Name, u.Department, u.PasswordHash,
		u.EmailVerified, u.EmailVerificationCode, u.PhoneVerified, u.PhoneVerificationCode,
	))
	if err != nil {
		return nil, translateConflict(err)
	}

	return created, nil
}

// translateConflict maps a storage-level unique violation back to the same
// field-specific error a pre-check would have produced. This is the second
// line of defense for concurrent registrations.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch pgErr.ConstraintName {
	case "users_email_key":
		return domain.NewValidationError("email", domain.MsgEmailTaken)
	case "users_campus_id_key":
		return domain.NewValidationError("campus_id", domain.MsgCampusIDTaken)
	case "users_phone_key":
		return domain.NewValidationError("phone", domain.MsgPhoneTaken)
	}
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	return r.findOne(ctx, q, id)
}

func (r *userRepository) FindByCampusID(ctx context.Context, campusID string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE campus_id = $1`
	return r.findOne(ctx, q, campusID)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	return r.findOne(ctx, q, email)
}

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE phone = $1`
	return r.findOne(ctx, q, phone)
}

func (r *userRepository) findOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, arg))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) SetEmailCode(ctx context.Context, userID int64, code string) error {
	const q = `UPDATE users SET email_verification_code = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, userID, code)
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, userID int64) error {
	const q = `
		UPDATE users
		SET email_verified = true, email_verification_code = NULL, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, q, userID)
}

func (r *userRepository) SetPhoneCode(ctx context.Context, userID int64, code string) error {
	const q = `UPDATE users SET phone_verification_code = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, userID, code)
}

func (r *userRepository) ClearPhoneCode(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET phone_verification_code = NULL, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, userID)
}

func (r *userRepository) MarkPhoneVerified(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET phone_verified = true, updated_at = now() WHERE id = $1`
	return r.exec(ctx, q, userID)
}

// UpdatePassword also clears any outstanding phone reset code: a code is
// single-use and a completed reset consumes it.
func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, phone_verification_code = NULL, updated_at = now()
		WHERE id = $1`
	return r.exec(ctx, q, userID, passwordHash)
}

func (r *userRepository) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

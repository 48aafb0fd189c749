package auth

import (
	"context"
	"errors"

	"blog/internal/db"
	"blog/internal/models"
)

// registrationLock serializes the first-account-is-admin decision.
const registrationLock int64 = 0x626c6f67

// Register hashes password and creates the account. Hashing is slow, so
// handlers that hold a write transaction hash first and call CreateAccount.
func Register(ctx context.Context, q db.Querier, u *models.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return CreateAccount(ctx, q, u)
}

// CreateAccount inserts u, whose PasswordHash is already set. The first
// account ever created is the admin. Callers run it inside a transaction so
// the role decision and the insert are atomic.
func CreateAccount(ctx context.Context, q db.Querier, u *models.User) error {
	if err := db.Lock(ctx, q, registrationLock); err != nil {
		return err
	}
	_, err := models.GetUserByEmail(ctx, q, u.Email)
	if err == nil {
		return models.ErrDuplicateEmail
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	n, err := models.CountUsers(ctx, q)
	if err != nil {
		return err
	}
	u.Role = models.RoleUser
	if n == 0 {
		u.Role = models.RoleAdmin
	}
	return models.CreateUser(ctx, q, u)
}

// Authenticate distinguishes an unknown email (models.ErrNoAccount) from a
// wrong password (models.ErrInvalidCredentials).
func Authenticate(ctx context.Context, q db.Querier, email, password string) (*models.User, error) {
	u, err := models.GetUserByEmail(ctx, q, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoAccount
	}
	if err != nil {
		return nil, err
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}

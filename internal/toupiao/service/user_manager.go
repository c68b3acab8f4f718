package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/idx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/google/uuid"
)

// LockoutOptions controls how failed sign-ins lock an account.
type LockoutOptions struct {
	MaxFailedAccessAttempts int
	LockoutTimeSpan         time.Duration
	AllowedForNewUsers      bool
}

func DefaultLockoutOptions() LockoutOptions {
	return LockoutOptions{
		MaxFailedAccessAttempts: 5,
		LockoutTimeSpan:         5 * time.Minute,
		AllowedForNewUsers:      true,
	}
}

// DefaultTokenLifespan applies to email confirmation and password reset
// tokens.
const DefaultTokenLifespan = 3 * time.Hour

// UserManager owns user records: creation, passwords, tokens, lockout and
// role membership.
type UserManager struct {
	Store         store.Store
	Policy        PasswordPolicy
	Lockout       LockoutOptions
	TokenLifespan time.Duration
	Clock         Clock
}

// NewUserManager returns a manager with the default policy, lockout and
// token lifespan.
func NewUserManager(st store.Store) *UserManager {
	return &UserManager{
		Store:         st,
		Policy:        DefaultPasswordPolicy(),
		Lockout:       DefaultLockoutOptions(),
		TokenLifespan: DefaultTokenLifespan,
	}
}

// WithStore returns a copy bound to st, typically a transaction.
func (m *UserManager) WithStore(st store.Store) *UserManager {
	c := *m
	c.Store = st
	return &c
}

func (m *UserManager) tokenLifespan() time.Duration {
	if m.TokenLifespan <= 0 {
		return DefaultTokenLifespan
	}
	return m.TokenLifespan
}

func mapUserErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// FindByEmail returns the first registered user with the email.
func (m *UserManager) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := m.Store.Users().GetUserByNormalizedEmail(ctx, domain.Normalize(email))
	return u, mapUserErr(err)
}

func (m *UserManager) FindByName(ctx context.Context, userName string) (domain.User, error) {
	u, err := m.Store.Users().GetUserByNormalizedName(ctx, domain.Normalize(userName))
	return u, mapUserErr(err)
}

func (m *UserManager) FindByID(ctx context.Context, id string) (domain.User, error) {
	u, err := m.Store.Users().GetUserByID(ctx, id)
	return u, mapUserErr(err)
}

func (m *UserManager) Count(ctx context.Context) (int, error) {
	return m.Store.Users().CountUsers(ctx)
}

func (m *UserManager) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return m.Store.Users().ListUsers(ctx, limit, offset)
}

type CreateUserInput struct {
	UserName string
	Email    string
	Password string
}

// Create validates and stores a new, unconfirmed user. Emails may repeat;
// user names may not.
func (m *UserManager) Create(ctx context.Context, in CreateUserInput) (domain.User, error) {
	userName := strings.TrimSpace(in.UserName)
	email := strings.TrimSpace(in.Email)

	if userName == "" {
		return domain.User{}, ErrInvalidUserName
	}
	if !IsEmail(email) {
		return domain.User{}, ErrInvalidEmail
	}
	if err := m.Policy.Validate(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := m.Clock.now()
	u := domain.User{
		ID:                 idx.NewAt(now).String(),
		UserName:           userName,
		NormalizedUserName: domain.Normalize(userName),
		Email:              email,
		NormalizedEmail:    domain.Normalize(email),
		PasswordHash:       hash,
		SecurityStamp:      newStamp(),
		ConcurrencyStamp:   newStamp(),
		LockoutEnabled:     m.Lockout.AllowedForNewUsers,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := m.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateUserName
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user created", slog.String("user_id", u.ID))
	return u, nil
}

// update persists u under a fresh concurrency stamp and returns the stored
// version.
func (m *UserManager) update(ctx context.Context, u domain.User) (domain.User, error) {
	expected := u.ConcurrencyStamp
	u.ConcurrencyStamp = newStamp()
	u.UpdatedAt = m.Clock.now()
	if err := m.Store.Users().UpdateUser(ctx, u, expected); err != nil {
		if errors.Is(err, store.ErrConcurrencyFailure) {
			return domain.User{}, ErrConcurrency
		}
		return domain.User{}, mapUserErr(err)
	}
	return u, nil
}

func (m *UserManager) IsEmailConfirmed(u domain.User) bool { return u.EmailConfirmed }

// GenerateEmailConfirmationToken returns a code for the confirmation link.
func (m *UserManager) GenerateEmailConfirmationToken(ctx context.Context, u domain.User) (string, error) {
	return m.generateToken(ctx, u, domain.TokenEmailConfirmation)
}

// ConfirmEmail consumes code and marks the email confirmed.
func (m *UserManager) ConfirmEmail(ctx context.Context, u domain.User, code string) (domain.User, error) {
	if err := m.consumeToken(ctx, u, domain.TokenEmailConfirmation, code); err != nil {
		return domain.User{}, err
	}
	u.EmailConfirmed = true
	return m.update(ctx, u)
}

func (m *UserManager) GeneratePasswordResetToken(ctx context.Context, u domain.User) (string, error) {
	return m.generateToken(ctx, u, domain.TokenPasswordReset)
}

// ResetPassword consumes code, checks the new password against the policy
// and rotates the security stamp so existing sessions end.
func (m *UserManager) ResetPassword(ctx context.Context, u domain.User, code, newPassword string) (domain.User, error) {
	if err := m.Policy.Validate(newPassword); err != nil {
		return domain.User{}, err
	}
	if err := m.consumeToken(ctx, u, domain.TokenPasswordReset, code); err != nil {
		return domain.User{}, err
	}
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.SecurityStamp = newStamp()
	return m.update(ctx, u)
}

// generateToken stores the fingerprint of a random token and returns the
// token base64url encoded for use in links.
func (m *UserManager) generateToken(ctx context.Context, u domain.User, purpose domain.TokenPurpose) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	now := m.Clock.now()
	err = m.Store.Tokens().CreateUserToken(ctx, domain.UserToken{
		ID:        idx.NewAt(now).String(),
		UserID:    u.ID,
		Purpose:   purpose,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(m.tokenLifespan()),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store %s token: %w", purpose, err)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

func (m *UserManager) consumeToken(ctx context.Context, u domain.User, purpose domain.TokenPurpose, code string) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(code, "="))
	if err != nil || len(raw) == 0 {
		return ErrInvalidToken
	}
	err = m.Store.Tokens().ConsumeUserToken(ctx, u.ID, purpose, cryptox.FingerprintToken(string(raw)), m.Clock.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

// CheckPassword reports whether password matches. A stale hash is upgraded
// in place on success.
func (m *UserManager) CheckPassword(ctx context.Context, u domain.User, password string) (bool, error) {
	err := cryptox.VerifyPassword(password, u.PasswordHash)
	switch {
	case errors.Is(err, cryptox.ErrPasswordMismatch):
		return false, nil
	case err != nil:
		return false, err
	}

	if cryptox.NeedsRehash(u.PasswordHash) {
		if hash, err := cryptox.HashPassword(password); err == nil {
			u.PasswordHash = hash
			if _, err := m.update(ctx, u); err != nil {
				slogx.FromContext(ctx).Warn("password rehash failed", slog.String("user_id", u.ID), slog.Any("error", err))
			}
		}
	}
	return true, nil
}

func (m *UserManager) IsLockedOut(u domain.User) bool {
	return u.IsLockedOut(m.Clock.now())
}

// AccessFailed records a failed attempt and locks the account once the
// limit is reached.
func (m *UserManager) AccessFailed(ctx context.Context, u domain.User) (domain.User, error) {
	u.AccessFailedCount++
	if u.LockoutEnabled && u.AccessFailedCount >= m.Lockout.MaxFailedAccessAttempts {
		end := m.Clock.now().Add(m.Lockout.LockoutTimeSpan)
		u.LockoutEnd = &end
		u.AccessFailedCount = 0
	}
	return m.update(ctx, u)
}

func (m *UserManager) ResetAccessFailed(ctx context.Context, u domain.User) (domain.User, error) {
	if u.AccessFailedCount == 0 {
		return u, nil
	}
	u.AccessFailedCount = 0
	return m.update(ctx, u)
}

// SetLockoutEnd locks the user until end, or unlocks when end is nil.
func (m *UserManager) SetLockoutEnd(ctx context.Context, u domain.User, end *time.Time) (domain.User, error) {
	u.LockoutEnabled = true
	u.LockoutEnd = end
	if end == nil {
		u.AccessFailedCount = 0
	}
	return m.update(ctx, u)
}

// UpdateSecurityStamp invalidates every session of the user.
func (m *UserManager) UpdateSecurityStamp(ctx context.Context, u domain.User) (domain.User, error) {
	u.SecurityStamp = newStamp()
	return m.update(ctx, u)
}

// AddToRole is a no-op when the user already has the role.
func (m *UserManager) AddToRole(ctx context.Context, u domain.User, roleName string) error {
	role, err := m.Store.Roles().GetRoleByNormalizedName(ctx, domain.Normalize(roleName))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return m.Store.Roles().AddUserToRole(ctx, u.ID, role.ID)
}

func (m *UserManager) RemoveFromRole(ctx context.Context, u domain.User, roleName string) error {
	role, err := m.Store.Roles().GetRoleByNormalizedName(ctx, domain.Normalize(roleName))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return m.Store.Roles().RemoveUserFromRole(ctx, u.ID, role.ID)
}

func (m *UserManager) IsInRole(ctx context.Context, u domain.User, roleName string) (bool, error) {
	return m.Store.Roles().IsUserInRole(ctx, u.ID, domain.Normalize(roleName))
}

func (m *UserManager) GetRoles(ctx context.Context, u domain.User) ([]string, error) {
	return m.Store.Roles().ListRolesForUser(ctx, u.ID)
}

func newStamp() string { return uuid.NewString() }

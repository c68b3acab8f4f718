package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// TokenIssuer signs and verifies cookie tokens. *jwtx.KeyManager satisfies it.
type TokenIssuer interface {
	Sign(claims jwtx.Claims) (string, error)
	Verify(token, purpose string) (*jwtx.Claims, error)
}

const (
	DefaultSessionTTL         = 14 * 24 * time.Hour
	DefaultTwoFactorTTL       = 5 * time.Minute
	DefaultRememberMachineTTL = 14 * 24 * time.Hour
)

// Ticket is a signed cookie value with its expiry. Non-persistent tickets
// belong in session cookies.
type Ticket struct {
	Value      string
	ExpiresAt  time.Time
	Persistent bool
}

// SignInOutcome is a SignInResult plus the cookies the caller must write.
type SignInOutcome struct {
	Result domain.SignInResult
	User   domain.User

	Session         *Ticket // set on success
	TwoFactor       *Ticket // set when a second factor is required
	RememberMachine *Ticket // set when the browser asked to be remembered
}

// SignInManager turns credentials into session tickets.
type SignInManager struct {
	Users     *UserManager
	TwoFactor *TwoFactorService
	Tokens    TokenIssuer
	Issuer    string

	SessionTTL         time.Duration
	TwoFactorTTL       time.Duration
	RememberMachineTTL time.Duration

	// RequireConfirmedAccount refuses sign-in until the email is confirmed.
	RequireConfirmedAccount bool

	Clock Clock
}

type PasswordSignInRequest struct {
	UserName         string
	Password         string
	Persistent       bool
	LockoutOnFailure bool

	// RememberMachine is the value of the remember-this-browser cookie, if
	// any. A valid one skips the second factor.
	RememberMachine string
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// PasswordSignIn checks the password and, when no second factor is needed,
// issues a session ticket.
func (m *SignInManager) PasswordSignIn(ctx context.Context, req PasswordSignInRequest) (SignInOutcome, error) {
	u, err := m.Users.FindByName(ctx, req.UserName)
	if errors.Is(err, ErrUserNotFound) {
		return SignInOutcome{Result: domain.SignInFailed}, nil
	}
	if err != nil {
		return SignInOutcome{}, err
	}

	out, err := m.checkPasswordSignIn(ctx, u, req.Password, req.LockoutOnFailure)
	if err != nil || !out.Result.Succeeded {
		return out, err
	}
	u = out.User

	if u.TwoFactorEnabled && !m.isMachineRemembered(u, req.RememberMachine) {
		claims := jwtx.NewClaims(jwtx.PurposeTwoFactor, u.ID, orDefault(m.TwoFactorTTL, DefaultTwoFactorTTL), m.Issuer, m.Clock.now())
		claims.Persistent = req.Persistent
		claims.Stamp = u.SecurityStamp
		t, err := m.ticket(claims, false)
		if err != nil {
			return SignInOutcome{}, err
		}
		return SignInOutcome{Result: domain.SignInTwoFactorRequired, User: u, TwoFactor: t}, nil
	}

	return m.signIn(u, req.Persistent, jwtx.AMRPassword)
}

func (m *SignInManager) checkPasswordSignIn(ctx context.Context, u domain.User, password string, lockoutOnFailure bool) (SignInOutcome, error) {
	l := slogx.FromContext(ctx)

	if m.RequireConfirmedAccount && !u.EmailConfirmed {
		l.Warn("user cannot sign in without a confirmed email", slog.String("user_id", u.ID))
		return SignInOutcome{Result: domain.SignInNotAllowed, User: u}, nil
	}
	if m.Users.IsLockedOut(u) {
		l.Warn("user is currently locked out", slog.String("user_id", u.ID))
		return SignInOutcome{Result: domain.SignInLockedOut, User: u}, nil
	}

	ok, err := m.Users.CheckPassword(ctx, u, password)
	if err != nil {
		return SignInOutcome{}, err
	}
	if ok {
		fresh, err := m.Users.FindByID(ctx, u.ID)
		if err != nil {
			return SignInOutcome{}, err
		}
		fresh, err = m.Users.ResetAccessFailed(ctx, fresh)
		if err != nil {
			return SignInOutcome{}, err
		}
		return SignInOutcome{Result: domain.SignInSuccess, User: fresh}, nil
	}

	l.Warn("user failed to provide the correct password", slog.String("user_id", u.ID))
	if lockoutOnFailure {
		u, err = m.Users.AccessFailed(ctx, u)
		if err != nil {
			return SignInOutcome{}, err
		}
		if m.Users.IsLockedOut(u) {
			return SignInOutcome{Result: domain.SignInLockedOut, User: u}, nil
		}
	}
	return SignInOutcome{Result: domain.SignInFailed, User: u}, nil
}

// TwoFactorUser loads the user behind a pending two-factor ticket.
func (m *SignInManager) TwoFactorUser(ctx context.Context, twoFactorToken string) (domain.User, *jwtx.Claims, error) {
	if twoFactorToken == "" {
		return domain.User{}, nil, ErrTwoFactorUserMissing
	}
	claims, err := m.Tokens.Verify(twoFactorToken, jwtx.PurposeTwoFactor)
	if err != nil {
		return domain.User{}, nil, ErrTwoFactorUserMissing
	}
	u, err := m.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return domain.User{}, nil, ErrTwoFactorUserMissing
	}
	if u.SecurityStamp != claims.Stamp {
		return domain.User{}, nil, ErrTwoFactorUserMissing
	}
	return u, claims, nil
}

// TwoFactorAuthenticatorSignIn completes a pending sign-in with an
// authenticator code. Wrong codes always count toward lockout.
func (m *SignInManager) TwoFactorAuthenticatorSignIn(ctx context.Context, twoFactorToken, code string, persistent, rememberMachine bool) (SignInOutcome, error) {
	u, _, err := m.TwoFactorUser(ctx, twoFactorToken)
	if err != nil {
		return SignInOutcome{}, err
	}
	if m.Users.IsLockedOut(u) {
		return SignInOutcome{Result: domain.SignInLockedOut, User: u}, nil
	}

	if !m.TwoFactor.VerifyCode(u, code) {
		slogx.FromContext(ctx).Warn("invalid authenticator code entered", slog.String("user_id", u.ID))
		return m.secondFactorFailed(ctx, u)
	}

	out, err := m.completeTwoFactor(ctx, u, persistent, jwtx.AMROTP)
	if err != nil {
		return SignInOutcome{}, err
	}
	if rememberMachine {
		claims := jwtx.NewClaims(jwtx.PurposeRememberMachine, u.ID, orDefault(m.RememberMachineTTL, DefaultRememberMachineTTL), m.Issuer, m.Clock.now())
		claims.Stamp = u.SecurityStamp
		if out.RememberMachine, err = m.ticket(claims, true); err != nil {
			return SignInOutcome{}, err
		}
	}
	return out, nil
}

// TwoFactorRecoveryCodeSignIn completes a pending sign-in with a recovery
// code. The resulting session is never persistent.
func (m *SignInManager) TwoFactorRecoveryCodeSignIn(ctx context.Context, twoFactorToken, code string) (SignInOutcome, error) {
	u, _, err := m.TwoFactorUser(ctx, twoFactorToken)
	if err != nil {
		return SignInOutcome{}, err
	}
	if m.Users.IsLockedOut(u) {
		return SignInOutcome{Result: domain.SignInLockedOut, User: u}, nil
	}

	ok, err := m.TwoFactor.RedeemRecoveryCode(ctx, u, code)
	if err != nil {
		return SignInOutcome{}, err
	}
	if !ok {
		slogx.FromContext(ctx).Warn("invalid recovery code entered", slog.String("user_id", u.ID))
		return m.secondFactorFailed(ctx, u)
	}
	slogx.FromContext(ctx).Info("user logged in with a recovery code", slog.String("user_id", u.ID))
	return m.completeTwoFactor(ctx, u, false, jwtx.AMRRecovery)
}

func (m *SignInManager) secondFactorFailed(ctx context.Context, u domain.User) (SignInOutcome, error) {
	u, err := m.Users.AccessFailed(ctx, u)
	if err != nil {
		return SignInOutcome{}, err
	}
	if m.Users.IsLockedOut(u) {
		return SignInOutcome{Result: domain.SignInLockedOut, User: u}, nil
	}
	return SignInOutcome{Result: domain.SignInFailed, User: u}, nil
}

func (m *SignInManager) completeTwoFactor(ctx context.Context, u domain.User, persistent bool, method string) (SignInOutcome, error) {
	u, err := m.Users.ResetAccessFailed(ctx, u)
	if err != nil {
		return SignInOutcome{}, err
	}
	return m.signIn(u, persistent, jwtx.AMRPassword, method, jwtx.AMRMFA)
}

// SignIn issues a session ticket for u without checking credentials, as
// after registration or a password change.
func (m *SignInManager) SignIn(u domain.User, persistent bool) (SignInOutcome, error) {
	return m.signIn(u, persistent, jwtx.AMRPassword)
}

func (m *SignInManager) signIn(u domain.User, persistent bool, amr ...string) (SignInOutcome, error) {
	claims := jwtx.NewClaims(jwtx.PurposeIdentity, u.ID, orDefault(m.SessionTTL, DefaultSessionTTL), m.Issuer, m.Clock.now())
	claims.SID = jwtx.NewJTI()
	claims.AMR = amr
	claims.Username = u.UserName
	claims.Stamp = u.SecurityStamp
	claims.Persistent = persistent

	t, err := m.ticket(claims, persistent)
	if err != nil {
		return SignInOutcome{}, err
	}
	return SignInOutcome{Result: domain.SignInSuccess, User: u, Session: t}, nil
}

func (m *SignInManager) ticket(claims jwtx.Claims, persistent bool) (*Ticket, error) {
	v, err := m.Tokens.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", claims.Purpose, err)
	}
	return &Ticket{Value: v, ExpiresAt: claims.ExpiresAt.Time, Persistent: persistent}, nil
}

func (m *SignInManager) isMachineRemembered(u domain.User, token string) bool {
	if token == "" {
		return false
	}
	claims, err := m.Tokens.Verify(token, jwtx.PurposeRememberMachine)
	if err != nil {
		return false
	}
	return claims.Subject == u.ID && claims.Stamp == u.SecurityStamp
}

// ValidateSession resolves a session token to its user. Sessions end when
// the user's security stamp changes or the account is locked.
func (m *SignInManager) ValidateSession(ctx context.Context, token string) (domain.User, *jwtx.Claims, error) {
	claims, err := m.Tokens.Verify(token, jwtx.PurposeIdentity)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	u, err := m.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if u.SecurityStamp != claims.Stamp {
		return domain.User{}, nil, fmt.Errorf("%w: security stamp changed", ErrInvalidSession)
	}
	if m.Users.IsLockedOut(u) {
		return domain.User{}, nil, fmt.Errorf("%w: locked out", ErrInvalidSession)
	}
	return u, claims, nil
}

// SignOut only logs; the caller drops the cookies.
func (m *SignInManager) SignOut(ctx context.Context, userID string) {
	slogx.FromContext(ctx).Info("User logged out.", slog.String("user_id", userID))
}

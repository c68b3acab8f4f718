package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TwoFactorService manages the authenticator app and recovery codes of a
// user.
type TwoFactorService struct {
	Store  store.Store
	Users  *UserManager
	Issuer string // shown in authenticator apps
	Clock  Clock
}

// AuthenticatorSetup returns the shared secret for enrolment, creating one
// when the user has none yet. Two-factor stays off until EnableAuthenticator.
func (s *TwoFactorService) AuthenticatorSetup(ctx context.Context, u domain.User) (domain.AuthenticatorSetup, domain.User, error) {
	if u.AuthenticatorKey == nil || *u.AuthenticatorKey == "" {
		var err error
		u, err = s.ResetAuthenticatorKey(ctx, u)
		if err != nil {
			return domain.AuthenticatorSetup{}, u, err
		}
	}

	key, err := otp.NewKeyFromURL(s.keyURI(u.Email, *u.AuthenticatorKey))
	if err != nil {
		return domain.AuthenticatorSetup{}, u, fmt.Errorf("build otpauth uri: %w", err)
	}
	return domain.AuthenticatorSetup{
		Secret:  formatKey(key.Secret()),
		URI:     key.URL(),
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
	}, u, nil
}

// ResetAuthenticatorKey replaces the secret, disables two-factor and ends
// other sessions.
func (s *TwoFactorService) ResetAuthenticatorKey(ctx context.Context, u domain.User) (domain.User, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return u, fmt.Errorf("generate totp key: %w", err)
	}
	secret := key.Secret()
	u.AuthenticatorKey = &secret
	u.TwoFactorEnabled = false
	u.SecurityStamp = newStamp()
	return s.Users.update(ctx, u)
}

func (s *TwoFactorService) keyURI(account, secret string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&digits=6",
		url.PathEscape(s.Issuer), url.PathEscape(account), secret, url.PathEscape(s.Issuer))
}

// VerifyCode checks a six digit authenticator code, tolerating one period of
// clock skew.
func (s *TwoFactorService) VerifyCode(u domain.User, code string) bool {
	if u.AuthenticatorKey == nil || *u.AuthenticatorKey == "" {
		return false
	}
	code = strings.NewReplacer(" ", "", "-", "").Replace(code)
	ok, err := totp.ValidateCustom(code, *u.AuthenticatorKey, s.Clock.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// EnableAuthenticator turns two-factor on after a valid code and returns a
// fresh set of recovery codes.
func (s *TwoFactorService) EnableAuthenticator(ctx context.Context, u domain.User, code string) ([]string, error) {
	if !s.VerifyCode(u, code) {
		slogx.FromContext(ctx).Warn("invalid authenticator code during enrolment", slog.String("user_id", u.ID))
		return nil, ErrInvalidTOTPCode
	}

	codes, hashes, err := newRecoveryCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u.TwoFactorEnabled = true
		if _, err := s.Users.WithStore(tx).update(ctx, u); err != nil {
			return fmt.Errorf("enable two-factor: %w", err)
		}
		return tx.RecoveryCodes().ReplaceRecoveryCodes(ctx, u.ID, hashes)
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("user enabled two-factor authentication", slog.String("user_id", u.ID))
	return codes, nil
}

// GenerateRecoveryCodes replaces the user's recovery codes.
func (s *TwoFactorService) GenerateRecoveryCodes(ctx context.Context, u domain.User) ([]string, error) {
	if !u.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	codes, hashes, err := newRecoveryCodes()
	if err != nil {
		return nil, err
	}
	if err := s.Store.RecoveryCodes().ReplaceRecoveryCodes(ctx, u.ID, hashes); err != nil {
		return nil, fmt.Errorf("store recovery codes: %w", err)
	}
	return codes, nil
}

func (s *TwoFactorService) CountRecoveryCodes(ctx context.Context, u domain.User) (int, error) {
	return s.Store.RecoveryCodes().CountRecoveryCodes(ctx, u.ID)
}

// RedeemRecoveryCode consumes code. Each code works once.
func (s *TwoFactorService) RedeemRecoveryCode(ctx context.Context, u domain.User, code string) (bool, error) {
	hash := cryptox.FingerprintToken(cryptox.NormalizeRecoveryCode(code))
	return s.Store.RecoveryCodes().ConsumeRecoveryCode(ctx, u.ID, hash)
}

// Disable turns two-factor off and drops the recovery codes. The
// authenticator key is kept so re-enabling does not require a new scan.
func (s *TwoFactorService) Disable(ctx context.Context, u domain.User) (domain.User, error) {
	var out domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u.TwoFactorEnabled = false
		var err error
		out, err = s.Users.WithStore(tx).update(ctx, u)
		if err != nil {
			return err
		}
		return tx.RecoveryCodes().DeleteRecoveryCodes(ctx, u.ID)
	})
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("user disabled two-factor authentication", slog.String("user_id", u.ID))
	return out, nil
}

func newRecoveryCodes() (codes, hashes []string, err error) {
	codes = make([]string, domain.RecoveryCodeCount)
	hashes = make([]string, domain.RecoveryCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateRecoveryCode()
		if err != nil {
			return nil, nil, err
		}
		codes[i] = code
		hashes[i] = cryptox.FingerprintToken(code)
	}
	return codes, hashes, nil
}

// formatKey groups the secret in blocks of four for manual entry.
func formatKey(secret string) string {
	var sb strings.Builder
	for i, r := range strings.ToLower(secret) {
		if i > 0 && i%4 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

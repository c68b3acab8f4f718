package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestPasswordSignInNotAllowedUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pending", "pending@example.com", false)

	out, err := f.signIn.PasswordSignIn(context.Background(), PasswordSignInRequest{UserName: "pending", Password: testPassword})
	require.NoError(t, err)
	require.True(t, out.Result.IsNotAllowed)
	require.Equal(t, "NotAllowed", out.Result.String())
}

func TestPasswordSignInUnknownUser(t *testing.T) {
	f := newFixture(t)
	out, err := f.signIn.PasswordSignIn(context.Background(), PasswordSignInRequest{UserName: "ghost", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "Failed", out.Result.String())
}

func TestSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "sam", "sam@example.com", true)

	out, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{UserName: "sam", Password: testPassword})
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded)

	got, claims, err := f.signIn.ValidateSession(ctx, out.Session.Value)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "sam", claims.Username)
	require.True(t, claims.HasAMR(jwtx.AMRPassword))
	require.NotEmpty(t, claims.SID)

	_, _, err = f.signIn.ValidateSession(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidSession)

	// A rotated stamp ends the session.
	_, err = f.users.UpdateSecurityStamp(ctx, got)
	require.NoError(t, err)
	_, _, err = f.signIn.ValidateSession(ctx, out.Session.Value)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionTokenIsNotATwoFactorToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "tom", "tom@example.com", true)

	out, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{UserName: "tom", Password: testPassword})
	require.NoError(t, err)

	_, _, err = f.signIn.TwoFactorUser(ctx, out.Session.Value)
	require.ErrorIs(t, err, ErrTwoFactorUserMissing)
}

func TestTwoFactorAuthenticatorSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "uma", "uma@example.com", true)
	secret, _ := enableTwoFactor(t, f, u)

	out, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{UserName: "uma", Password: testPassword, Persistent: true})
	require.NoError(t, err)
	require.True(t, out.Result.RequiresTwoFactor)
	pending := out.TwoFactor.Value

	user, claims, err := f.signIn.TwoFactorUser(ctx, pending)
	require.NoError(t, err)
	require.Equal(t, u.ID, user.ID)
	require.True(t, claims.Persistent)

	out, err = f.signIn.TwoFactorAuthenticatorSignIn(ctx, pending, "000000", true, false)
	require.NoError(t, err)
	require.Equal(t, "Failed", out.Result.String())
	require.Equal(t, 1, out.User.AccessFailedCount, "wrong codes count toward lockout")

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	out, err = f.signIn.TwoFactorAuthenticatorSignIn(ctx, pending, code, true, true)
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded)
	require.True(t, out.Session.Persistent)
	require.NotNil(t, out.RememberMachine)
	require.Zero(t, out.User.AccessFailedCount)

	_, sess, err := f.signIn.ValidateSession(ctx, out.Session.Value)
	require.NoError(t, err)
	require.True(t, sess.HasAMR(jwtx.AMRMFA))
	require.True(t, sess.HasAMR(jwtx.AMROTP))

	// A remembered browser skips the second factor.
	again, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{
		UserName: "uma", Password: testPassword, RememberMachine: out.RememberMachine.Value,
	})
	require.NoError(t, err)
	require.True(t, again.Result.Succeeded)
}

func TestTwoFactorRecoveryCodeSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "vic", "vic@example.com", true)
	_, codes := enableTwoFactor(t, f, u)

	out, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{UserName: "vic", Password: testPassword})
	require.NoError(t, err)
	pending := out.TwoFactor.Value

	out, err = f.signIn.TwoFactorRecoveryCodeSignIn(ctx, pending, "BBBBB-BBBBB")
	require.NoError(t, err)
	require.Equal(t, "Failed", out.Result.String())

	// Codes are accepted regardless of case and spacing.
	typed := codes[0][:5] + " " + codes[0][6:]
	out, err = f.signIn.TwoFactorRecoveryCodeSignIn(ctx, pending, typed)
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded)
	require.False(t, out.Session.Persistent)

	out, err = f.signIn.TwoFactorRecoveryCodeSignIn(ctx, pending, codes[0])
	require.NoError(t, err)
	require.False(t, out.Result.Succeeded, "recovery codes work once")

	left, err := f.tf.CountRecoveryCodes(ctx, u)
	require.NoError(t, err)
	require.Equal(t, 9, left)
}

func TestTwoFactorDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "wes", "wes@example.com", true)
	enableTwoFactor(t, f, u)

	u, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, u.TwoFactorEnabled)

	codes, err := f.tf.GenerateRecoveryCodes(ctx, u)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	u, err = f.tf.Disable(ctx, u)
	require.NoError(t, err)
	require.False(t, u.TwoFactorEnabled)

	n, err := f.tf.CountRecoveryCodes(ctx, u)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.tf.GenerateRecoveryCodes(ctx, u)
	require.ErrorIs(t, err, ErrTwoFactorNotEnabled)

	out, err := f.signIn.PasswordSignIn(ctx, PasswordSignInRequest{UserName: "wes", Password: testPassword})
	require.NoError(t, err)
	require.True(t, out.Result.Succeeded)
}

func TestEnableAuthenticatorRejectsBadCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "xan", "xan@example.com", true)

	setup, u, err := f.tf.AuthenticatorSetup(ctx, u)
	require.NoError(t, err)
	require.Equal(t, "toupiao", setup.Issuer)
	require.Equal(t, "xan@example.com", setup.Account)

	_, err = f.tf.EnableAuthenticator(ctx, u, "123")
	require.ErrorIs(t, err, ErrInvalidTOTPCode)

	// A second setup call reuses the stored key.
	again, _, err := f.tf.AuthenticatorSetup(ctx, u)
	require.NoError(t, err)
	require.Equal(t, setup.Secret, again.Secret)
}

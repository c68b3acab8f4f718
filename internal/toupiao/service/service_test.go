package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store/drivers/sqlite"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "Passw0rd!"

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fixture wires every service over an in-memory store.
type fixture struct {
	store   store.Store
	mailer  *recordingMailer
	users   *UserManager
	roles   *RoleManager
	tf      *TwoFactorService
	signIn  *SignInManager
	account *AccountService
	login   *LoginService
	polls   *PollService
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "toupiao-test", NumKeys: 1})
	require.NoError(t, err)

	f := &fixture{store: st, mailer: &recordingMailer{}}
	f.users = NewUserManager(st)
	f.roles = &RoleManager{Store: st}
	f.tf = &TwoFactorService{Store: st, Users: f.users, Issuer: "toupiao"}
	f.signIn = &SignInManager{
		Users:                   f.users,
		TwoFactor:               f.tf,
		Tokens:                  keys,
		Issuer:                  "toupiao-test",
		RequireConfirmedAccount: true,
	}
	f.account = &AccountService{Users: f.users, Mailer: f.mailer}
	f.login = &LoginService{Store: st, Users: f.users, Roles: f.roles, SignIn: f.signIn, Account: f.account}
	f.polls = NewPollService(st)
	return f
}

// createUser registers a user and optionally confirms the email directly.
func (f *fixture) createUser(t *testing.T, name, email string, confirmed bool) domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Create(ctx, CreateUserInput{UserName: name, Email: email, Password: testPassword})
	require.NoError(t, err)
	if confirmed {
		code, err := f.users.GenerateEmailConfirmationToken(ctx, u)
		require.NoError(t, err)
		u, err = f.users.ConfirmEmail(ctx, u, code)
		require.NoError(t, err)
	}
	return u
}

func testLink(userID, code string) string {
	return "https://vote.example/Identity/Account/ConfirmEmail?userId=" + userID + "&code=" + code
}

func testMessage(link string) (string, string) {
	return "确认你的电子邮件", "请确认您的帐户 <a href='" + link + "'>点击这里</a>"
}

// fixedClock returns a Clock frozen at t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

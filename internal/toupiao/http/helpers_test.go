package http

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store/drivers/sqlite"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/pquerna/otp/totp"
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

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

// link extracts the href of the mailed anchor.
func (s sentMail) link(t *testing.T) string {
	t.Helper()
	start := strings.Index(s.Body, "href='")
	end := strings.Index(s.Body, "'>")
	require.True(t, start >= 0 && end > start, "no link in %q", s.Body)
	return html.UnescapeString(s.Body[start+len("href='") : end])
}

// testApp runs the full router over an in-memory store.
type testApp struct {
	t      *testing.T
	srv    *httptest.Server
	router *Router
	store  store.Store
	mailer *recordingMailer
	keys   *jwtx.KeyManager
}

type testOption func(r *Router)

func newTestApp(t *testing.T, opts ...testOption) *testApp {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "toupiao-test", NumKeys: 1})
	require.NoError(t, err)

	renderer, err := web.New()
	require.NoError(t, err)

	mailer := &recordingMailer{}
	users := service.NewUserManager(st)
	roles := &service.RoleManager{Store: st}
	tf := &service.TwoFactorService{Store: st, Users: users, Issuer: "Toupiao"}
	signIn := &service.SignInManager{
		Users:                   users,
		TwoFactor:               tf,
		Tokens:                  keys,
		Issuer:                  "toupiao-test",
		RequireConfirmedAccount: true,
	}
	account := &service.AccountService{Users: users, Mailer: mailer}

	r := NewRouter(Options{Dev: true, BuildVersion: "test"}, st, keys, renderer, metrics.New(), slogx.Discard())
	r.Users = users
	r.Roles = roles
	r.SignIn = signIn
	r.TwoFactor = tf
	r.Account = account
	r.Login = &service.LoginService{Store: st, Users: users, Roles: roles, SignIn: signIn, Account: account}
	r.Polls = service.NewPollService(st)
	for _, o := range opts {
		o(r)
	}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testApp{t: t, srv: srv, router: r, store: st, mailer: mailer, keys: keys}
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	app    *testApp
	client *http.Client
}

func (a *testApp) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &browser{
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	*http.Response
	body string
}

func (r *response) cookie(name string) *http.Cookie {
	for _, c := range r.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (b *browser) do(req *http.Request) *response {
	b.app.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.app.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.app.t, err)
	return &response{Response: resp, body: string(body)}
}

func (b *browser) get(path string) *response {
	b.app.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.app.srv.URL+path, nil)
	require.NoError(b.app.t, err)
	return b.do(req)
}

// token returns the antiforgery token of the browser, fetching a page first
// when no cookie was issued yet.
func (b *browser) token() string {
	b.app.t.Helper()
	if b.cookie(antiforgeryCookie) == "" {
		b.get("/livez")
	}
	var token string
	require.NoError(b.app.t, b.app.router.codec.Decode(antiforgeryCookie, b.cookie(antiforgeryCookie), &token))
	return token
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.app.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// post submits form with the antiforgery token.
func (b *browser) post(path string, form url.Values) *response {
	b.app.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(antiforgeryField, b.token())
	return b.postRaw(path, form)
}

func (b *browser) postRaw(path string, form url.Values) *response {
	b.app.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.app.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) login(email string) *response {
	b.app.t.Helper()
	return b.post("/Identity/Account/Login", url.Values{
		"Input.Email":    {email},
		"Input.Password": {testPassword},
	})
}

func requireRedirect(t *testing.T, r *response, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, r.StatusCode, r.body)
	require.Equal(t, location, r.Header.Get("Location"))
}

// createUser registers a user directly, optionally confirmed.
func (a *testApp) createUser(name, email string, confirmed bool) domain.User {
	a.t.Helper()
	ctx := context.Background()
	u, err := a.router.Users.Create(ctx, service.CreateUserInput{UserName: name, Email: email, Password: testPassword})
	require.NoError(a.t, err)
	if confirmed {
		code, err := a.router.Users.GenerateEmailConfirmationToken(ctx, u)
		require.NoError(a.t, err)
		u, err = a.router.Users.ConfirmEmail(ctx, u, code)
		require.NoError(a.t, err)
	}
	return u
}

// enableTwoFactor enrols u with an authenticator and returns its key.
func (a *testApp) enableTwoFactor(u domain.User) string {
	a.t.Helper()
	ctx := context.Background()
	_, u, err := a.router.TwoFactor.AuthenticatorSetup(ctx, u)
	require.NoError(a.t, err)
	code, err := totp.GenerateCode(*u.AuthenticatorKey, time.Now())
	require.NoError(a.t, err)
	_, err = a.router.TwoFactor.EnableAuthenticator(ctx, u, code)
	require.NoError(a.t, err)
	return *u.AuthenticatorKey
}

var formTokenRE = regexp.MustCompile(`name="__RequestVerificationToken" value="([^"]+)"`)

// formToken reads the antiforgery token rendered into a page.
func formToken(t *testing.T, body string) string {
	t.Helper()
	m := formTokenRE.FindStringSubmatch(body)
	require.Len(t, m, 2, "no antiforgery field in page")
	return m[1]
}

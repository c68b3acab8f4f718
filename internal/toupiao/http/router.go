package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
	"github.com/aussiebroadwan/toupiao/pkg/toupiaosdk"
	"github.com/gorilla/securecookie"
	"golang.org/x/text/language"

	_ "github.com/aussiebroadwan/toupiao/api/toupiao" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options configures the web front end.
type Options struct {
	Dev            bool // detailed errors, no HTTPS redirect or HSTS
	SecureCookies  bool
	HTTPSRedirect  bool
	HSTSMaxAge     time.Duration
	DefaultCulture language.Tag
	PublicBaseURL  string // overrides scheme and host of mailed links

	// CookieHashKey and CookieBlockKey seal the flash and antiforgery
	// cookies. Random keys are generated when empty.
	CookieHashKey  []byte
	CookieBlockKey []byte

	BuildVersion string
	Clock        func() time.Time
}

// KeyStatus reports whether session tokens can be signed.
type KeyStatus interface {
	IsReady() bool
}

// ReadinessCheck is an extra dependency reported by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	*pages

	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	startTime time.Time
	logger    *slog.Logger
	store     store.Store
	keys      KeyStatus
	checks    []ReadinessCheck

	Users     *service.UserManager
	Roles     *service.RoleManager
	SignIn    *service.SignInManager
	TwoFactor *service.TwoFactorService
	Login     *service.LoginService
	Account   *service.AccountService
	Polls     *service.PollService
}

func NewRouter(
	opts Options,
	st store.Store,
	keys KeyStatus,
	renderer *web.Renderer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	if opts.DefaultCulture == language.Und {
		opts.DefaultCulture = i18n.ZhHans
	}
	hashKey, blockKey := opts.CookieHashKey, opts.CookieBlockKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if len(blockKey) == 0 {
		blockKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})

	r := &Router{
		pages: &pages{
			renderer: renderer,
			codec:    codec,
			opts:     opts,
			metrics:  m,
		},
		Mux:       http.NewServeMux(),
		startTime: time.Now(),
		logger:    logger,
		store:     st,
		keys:      keys,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recoverer(r.serverError),
	}
	if opts.HTTPSRedirect {
		r.middlewares = append(r.middlewares, httpx.HTTPSRedirect())
	}
	if !opts.Dev && opts.HSTSMaxAge > 0 {
		r.middlewares = append(r.middlewares, httpx.HSTS(opts.HSTSMaxAge))
	}
	r.middlewares = append(r.middlewares,
		httpx.SecurityHeaders(),
		r.culture,
		r.authenticate,
		r.antiforgery,
	)

	return r
}

// AddReadinessCheck registers a dependency for /readyz. Call it before
// ApplyRoutes.
func (r *Router) AddReadinessCheck(name string, check func(ctx context.Context) error) {
	r.checks = append(r.checks, ReadinessCheck{Name: name, Check: check})
}

func (r *Router) ApplyRoutes() {
	r.registerHome()
	r.registerAccount()
	r.registerManage()
	r.registerPolls()
	r.registerAdmin()
	r.registerAPI()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
	r.Mux.Handle("GET /static/", web.Static())

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Toupiao API
//	@version		0.1.0
//	@description	Read-only JSON access to polls and their results.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/toupiao
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.handler == nil {
		httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
		return
	}
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerHome() {
	h := &HomeHandler{pages: r.pages, Polls: r.Polls}

	index := httpx.Chain(http.HandlerFunc(h.HandleIndex), httpx.RateLimitByIP(httpx.LenientLimit))
	r.Mux.Handle("GET /{$}", index)
	r.Mux.Handle("GET /Home/Index", index)
	r.Mux.Handle("GET /Home/Error", http.HandlerFunc(h.HandleError))
}

func (r *Router) registerAccount() {
	login := &LoginHandler{pages: r.pages, Login: r.Login}

	// Login POST is limited by IP + submitted email to slow down guessing.
	r.Mux.Handle("GET /Identity/Account/Login",
		httpx.Chain(http.HandlerFunc(login.HandleGet), httpx.RateLimitByIP(httpx.LenientLimit)),
	)
	r.Mux.Handle("POST /Identity/Account/Login",
		httpx.Chain(http.HandlerFunc(login.HandlePost),
			r.countLimited("login"),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "Input.Email"),
		),
	)

	reg := &RegisterHandler{pages: r.pages, Account: r.Account}
	r.Mux.Handle("GET /Identity/Account/Register", http.HandlerFunc(reg.HandleGet))
	r.Mux.Handle("POST /Identity/Account/Register",
		httpx.Chain(http.HandlerFunc(reg.HandlePost),
			r.countLimited("register"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /Identity/Account/RegisterConfirmation", http.HandlerFunc(reg.HandleConfirmation))

	email := &EmailHandler{pages: r.pages, Account: r.Account}
	r.Mux.Handle("GET /Identity/Account/ConfirmEmail",
		httpx.Chain(http.HandlerFunc(email.HandleConfirm), httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
	r.Mux.Handle("GET /Identity/Account/ResendEmailConfirmation", http.HandlerFunc(email.HandleResendGet))
	r.Mux.Handle("POST /Identity/Account/ResendEmailConfirmation",
		httpx.Chain(http.HandlerFunc(email.HandleResendPost),
			r.countLimited("resend_confirmation"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	pw := &PasswordHandler{pages: r.pages, Account: r.Account}
	r.Mux.Handle("GET /Identity/Account/ForgotPassword", http.HandlerFunc(pw.HandleForgotGet))
	r.Mux.Handle("POST /Identity/Account/ForgotPassword",
		httpx.Chain(http.HandlerFunc(pw.HandleForgotPost),
			r.countLimited("forgot_password"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /Identity/Account/ForgotPasswordConfirmation", r.static("account/forgot_password_confirmation", "Forgot password confirmation"))
	r.Mux.Handle("GET /Identity/Account/ResetPassword", http.HandlerFunc(pw.HandleResetGet))
	r.Mux.Handle("POST /Identity/Account/ResetPassword",
		httpx.Chain(http.HandlerFunc(pw.HandleResetPost),
			r.countLimited("reset_password"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /Identity/Account/ResetPasswordConfirmation", r.static("account/reset_password_confirmation", "Reset password confirmation"))

	tf := &TwoFactorLoginHandler{pages: r.pages, SignIn: r.SignIn, Login: r.Login}
	r.Mux.Handle("GET /Identity/Account/LoginWith2fa", http.HandlerFunc(tf.HandleGet))
	r.Mux.Handle("POST /Identity/Account/LoginWith2fa",
		httpx.Chain(http.HandlerFunc(tf.HandlePost),
			r.countLimited("login_2fa"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /Identity/Account/LoginWithRecoveryCode", http.HandlerFunc(tf.HandleRecoveryGet))
	r.Mux.Handle("POST /Identity/Account/LoginWithRecoveryCode",
		httpx.Chain(http.HandlerFunc(tf.HandleRecoveryPost),
			r.countLimited("login_recovery"),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /Identity/Account/Lockout", r.static("account/lockout", "Locked out"))
	r.Mux.Handle("GET /Identity/Account/AccessDenied", r.static("account/access_denied", "Access denied"))

	logout := &LogoutHandler{pages: r.pages, SignIn: r.SignIn}
	r.Mux.Handle("GET /Identity/Account/Logout", http.HandlerFunc(logout.HandleGet))
	r.Mux.Handle("POST /Identity/Account/Logout", http.HandlerFunc(logout.HandlePost))
}

func (r *Router) registerManage() {
	h := &ManageTwoFactorHandler{pages: r.pages, TwoFactor: r.TwoFactor, SignIn: r.SignIn}

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn, r.requireUser, httpx.RateLimitByUser(limit))
	}

	r.Mux.Handle("GET /Identity/Account/Manage/TwoFactorAuthentication", secured(h.HandleIndex, httpx.LenientLimit))
	r.Mux.Handle("GET /Identity/Account/Manage/EnableAuthenticator", secured(h.HandleEnableGet, httpx.ModerateLimit))
	// Verification codes are six digits; keep guessing slow.
	r.Mux.Handle("POST /Identity/Account/Manage/EnableAuthenticator", secured(h.HandleEnablePost, httpx.StrictLimit))
	r.Mux.Handle("POST /Identity/Account/Manage/ResetAuthenticator", secured(h.HandleReset, httpx.ModerateLimit))
	r.Mux.Handle("POST /Identity/Account/Manage/GenerateRecoveryCodes", secured(h.HandleGenerateCodes, httpx.ModerateLimit))
	r.Mux.Handle("POST /Identity/Account/Manage/Disable2fa", secured(h.HandleDisable, httpx.ModerateLimit))
	r.Mux.Handle("POST /Identity/Account/Manage/ForgetBrowser", secured(h.HandleForgetBrowser, httpx.ModerateLimit))
}

func (r *Router) registerPolls() {
	h := &PollsHandler{pages: r.pages, Polls: r.Polls}
	byID := validID(http.HandlerFunc(r.notFound))

	r.Mux.Handle("GET /Polls", httpx.Chain(http.HandlerFunc(h.HandleIndex), httpx.RateLimitByIP(httpx.LenientLimit)))
	r.Mux.Handle("GET /Polls/Details/{id}", httpx.Chain(http.HandlerFunc(h.HandleDetails), httpx.RateLimitByIP(httpx.LenientLimit), byID))
	r.Mux.Handle("GET /Polls/Results/{id}", httpx.Chain(http.HandlerFunc(h.HandleResults), httpx.RateLimitByIP(httpx.LenientLimit), byID))

	r.Mux.Handle("GET /Polls/Create", httpx.Chain(http.HandlerFunc(h.HandleCreateGet), r.requireUser))
	r.Mux.Handle("POST /Polls/Create",
		httpx.Chain(http.HandlerFunc(h.HandleCreatePost), r.requireUser, httpx.RateLimitByUser(httpx.ModerateLimit)),
	)
	r.Mux.Handle("POST /Polls/Vote/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleVote),
			r.requireUser,
			r.countLimited("vote"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
			byID,
		),
	)
	r.Mux.Handle("POST /Polls/Close/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleClose), r.requireUser, httpx.RateLimitByUser(httpx.ModerateLimit), byID),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{pages: r.pages, Users: r.Users, Roles: r.Roles, Polls: r.Polls}

	admin := func(fn http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
		return httpx.Chain(fn, append([]httpx.Middleware{r.requireAdmin, httpx.RateLimitByUser(httpx.ModerateLimit)}, mws...)...)
	}
	byID := validID(http.HandlerFunc(r.notFound))

	r.Mux.Handle("GET /Admin", admin(h.HandleIndex))
	r.Mux.Handle("GET /Admin/Home/Index", admin(h.HandleIndex))
	r.Mux.Handle("GET /Admin/Users", admin(h.HandleUsers))
	r.Mux.Handle("POST /Admin/Users/Lock/{id}", admin(h.HandleLock, byID))
	r.Mux.Handle("POST /Admin/Users/Unlock/{id}", admin(h.HandleUnlock, byID))
	r.Mux.Handle("POST /Admin/Users/GrantAdmin/{id}", admin(h.HandleGrantAdmin, byID))
	r.Mux.Handle("POST /Admin/Users/RevokeAdmin/{id}", admin(h.HandleRevokeAdmin, byID))
	r.Mux.Handle("GET /Admin/Polls", admin(h.HandlePolls))
	r.Mux.Handle("POST /Admin/Polls/Delete/{id}", admin(h.HandleDeletePoll, byID))
}

func (r *Router) registerAPI() {
	h := &PollsAPIHandler{Polls: r.Polls}

	r.Mux.Handle("GET /api/v1/polls",
		httpx.Chain(http.HandlerFunc(h.HandleList), httpx.RateLimitByIP(httpx.PublicLimit)),
	)
	r.Mux.Handle("GET /api/v1/polls/{id}/results",
		httpx.Chain(http.HandlerFunc(h.HandleResults),
			httpx.RateLimitByIP(httpx.PublicLimit),
			validID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				toupiaosdk.ErrPollNotFound.WriteError(w)
			})),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.opts.BuildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.opts.BuildVersion, r.store, r.keys, r.checks),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}

// static renders a page that needs no data.
func (r *Router) static(page, title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		v := r.page(w, req, title, nil)
		v.ReturnURL = returnURL(req)
		r.render(w, req, http.StatusOK, page, v)
	})
}

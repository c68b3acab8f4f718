package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/toupiao/internal/toupiao/http"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/mail"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/metrics"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store/drivers/postgres"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/store/drivers/sqlite"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/web"
	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

// BuildVersion is overridden at build time with
// -ldflags "-X github.com/aussiebroadwan/toupiao/internal/toupiao/app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application holds the site and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	metrics    *metrics.Metrics
	mailer     service.EmailSender
	mailQueue  *mail.Queue // nil unless MAIL_QUEUE_REDIS_URL is set

	users        *service.UserManager
	roles        *service.RoleManager
	twoFactor    *service.TwoFactorService
	signIn       *service.SignInManager
	account      *service.AccountService
	login        *service.LoginService
	polls        *service.PollService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with every dependency initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "toupiao",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}
	for _, err := range cfg.envFileErrs {
		app.logger.Warn("ignoring unreadable env file", "error", err)
	}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	// Persistent keys live in the database, so it comes first.
	km, err := InitSessionKeys(ctx, cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize session keys: %w", err)
	}
	app.keyManager = km

	if err := app.initMail(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initServices()
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()
	if app.mailQueue != nil {
		if err := app.mailQueue.Start(); err != nil {
			return fmt.Errorf("start mail queue: %w", err)
		}
	}

	app.logger.Info("toupiao starting", "port", app.cfg.Port, "version", BuildVersion, "env", app.cfg.Env)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains the server, stops background work and closes the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down toupiao...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if app.mailQueue != nil {
		if err := app.mailQueue.Shutdown(); err != nil {
			app.logger.Error("error stopping mail queue", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("toupiao stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "sqlite":
		db, err = sqlite.NewStore("file:" + app.cfg.DatabaseFile)
	case "postgres":
		if app.cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", app.cfg.DatabaseDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initMail picks SMTP when a host is configured and the log otherwise,
// optionally behind the redis queue.
func (app *Application) initMail() error {
	var delivery mail.Sender
	if app.cfg.SMTPHost != "" {
		delivery = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.MailFrom,
			FromName: app.cfg.MailFromName,
		}, app.metrics)
		app.logger.Info("mail delivery via smtp", "host", app.cfg.SMTPHost, "port", app.cfg.SMTPPort)
	} else {
		delivery = &mail.LogSender{Metrics: app.metrics}
		app.logger.Warn("SMTP_HOST not set, emails are written to the log")
	}

	if app.cfg.MailQueueURL == "" {
		app.mailer = delivery
		return nil
	}
	q, err := mail.NewQueue(app.cfg.MailQueueURL, delivery, app.metrics, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail queue: %w", err)
	}
	app.mailQueue = q
	app.mailer = q
	app.logger.Info("mail is queued through redis")
	return nil
}

// initServices wires the identity, voting and housekeeping services.
func (app *Application) initServices() {
	app.users = service.NewUserManager(app.db)
	app.users.TokenLifespan = app.cfg.TokenLifespan
	app.users.Lockout.MaxFailedAccessAttempts = app.cfg.LockoutMaxFailed
	app.users.Lockout.LockoutTimeSpan = app.cfg.LockoutDuration

	app.roles = &service.RoleManager{Store: app.db}
	app.twoFactor = &service.TwoFactorService{
		Store:  app.db,
		Users:  app.users,
		Issuer: "Toupiao",
	}
	app.signIn = &service.SignInManager{
		Users:                   app.users,
		TwoFactor:               app.twoFactor,
		Tokens:                  app.keyManager,
		Issuer:                  app.cfg.SessionIssuer,
		SessionTTL:              app.cfg.SessionTTL,
		RequireConfirmedAccount: true,
	}
	app.account = &service.AccountService{Users: app.users, Mailer: app.mailer}
	app.login = &service.LoginService{
		Store:            app.db,
		Users:            app.users,
		Roles:            app.roles,
		SignIn:           app.signIn,
		Account:          app.account,
		LockoutOnFailure: app.cfg.LockoutOnFailure,
	}
	app.polls = service.NewPollService(app.db)

	app.housekeeping = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)
	app.housekeeping.Metrics = app.metrics
	if app.cfg.KeyStorageMode == "persistent" {
		app.housekeeping.Keys = app.keyManager
		app.housekeeping.KeyAge = app.cfg.KeyMaxAge
	}
}

// initHTTP builds the router and the server.
func (app *Application) initHTTP() error {
	renderer, err := web.New()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	culture, ok := i18n.Parse(app.cfg.DefaultCulture)
	if !ok {
		app.logger.Warn("unsupported DEFAULT_CULTURE, using zh-Hans", "culture", app.cfg.DefaultCulture)
		culture = i18n.ZhHans
	}
	hashKey, err := decodeKey("COOKIE_HASH_KEY", app.cfg.CookieHashKey)
	if err != nil {
		return err
	}
	blockKey, err := decodeKey("COOKIE_BLOCK_KEY", app.cfg.CookieBlockKey)
	if err != nil {
		return err
	}
	if hashKey == nil {
		app.logger.Warn("COOKIE_HASH_KEY not set, flash and antiforgery cookies reset on restart")
	}

	dev := app.cfg.Env == "dev"
	router := httpapi.NewRouter(httpapi.Options{
		Dev:            dev,
		SecureCookies:  app.cfg.CookieSecure,
		HTTPSRedirect:  app.cfg.HTTPSRedirect && !dev,
		HSTSMaxAge:     app.cfg.HSTSMaxAge,
		DefaultCulture: culture,
		PublicBaseURL:  app.cfg.PublicBaseURL,
		CookieHashKey:  hashKey,
		CookieBlockKey: blockKey,
		BuildVersion:   BuildVersion,
	}, app.db, app.keyManager, renderer, app.metrics, app.logger)

	router.Users = app.users
	router.Roles = app.roles
	router.SignIn = app.signIn
	router.TwoFactor = app.twoFactor
	router.Account = app.account
	router.Login = app.login
	router.Polls = app.polls
	if app.mailQueue != nil {
		router.AddReadinessCheck("mail_queue", app.mailQueue.Ping)
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// decodeKey reads a base64 securecookie key. Empty means generate one.
func decodeKey(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	return key, nil
}

package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./toupiao.db)
	DatabaseURL    string // Postgres connection string, required for postgres

	PepperFile     string        // File holding the password pepper (default: ./pepper)
	KeyStorageMode string        // ephemeral or persistent signing keys (default: persistent)
	MasterKeyPath  string        // Optional: AES master key for persisted signing keys
	KeyMaxAge      time.Duration // Signing keys older than this are rotated (default: 90 days)
	KeyGracePeriod time.Duration // Retired keys stay verifiable this long (default: 30 days)
	NumKeys        int           // Active signing keys (default: 3)
	SessionIssuer  string        // iss claim of session cookies (default: toupiao)

	CookieHashKey  string // Optional: base64 securecookie hash key
	CookieBlockKey string // Optional: base64 securecookie block key
	CookieSecure   bool   // Secure attribute on cookies (default: true outside dev)
	HTTPSRedirect  bool   // Redirect http to https (default: true outside dev)
	HSTSMaxAge     time.Duration

	TokenLifespan    time.Duration // Confirmation and reset token lifespan (default: 3h)
	LockoutOnFailure bool          // Count wrong passwords toward lockout (default: false)
	LockoutMaxFailed int           // Failures before lockout (default: 5)
	LockoutDuration  time.Duration // Lockout span (default: 5m)
	SessionTTL       time.Duration // Persistent session lifetime (default: 14 days)
	DefaultCulture   string        // zh-Hans or en-US (default: zh-Hans)
	PublicBaseURL    string        // Optional: scheme and host for mailed links

	SMTPHost      string // Optional: mail is logged when empty
	SMTPPort      int    // default: 587
	SMTPUsername  string
	SMTPPassword  string
	MailFrom      string
	MailFromName  string
	MailQueueURL  string // Optional: redis URL; mail is queued through asynq when set

	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	// envFileErrs holds .env parse failures for New to log.
	envFileErrs []error
}

// LoadConfig reads .env.local and .env when present, without overriding
// variables already set, then parses the environment.
func LoadConfig() Config {
	envFileErrs := loadDotEnv(".env.local", ".env")

	env := getEnvOrDefault("ENV", "dev")
	dev := env == "dev"

	cfg := Config{
		Env:                 env,
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		DatabaseDriver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "toupiao.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		PepperFile:     getEnvOrDefault("PEPPER_FILE", "pepper"),
		KeyStorageMode: getEnvOrDefault("KEY_STORAGE_MODE", "persistent"),
		MasterKeyPath:  os.Getenv("MASTER_KEY_PATH"),
		KeyMaxAge:      getEnvDurationOrDefault("KEY_MAX_AGE", 90*24*time.Hour),
		KeyGracePeriod: getEnvDurationOrDefault("KEY_GRACE_PERIOD", 30*24*time.Hour),
		NumKeys:        getEnvIntOrDefault("NUM_KEYS", 3),
		SessionIssuer:  getEnvOrDefault("SESSION_ISSUER", "toupiao"),

		CookieHashKey:  os.Getenv("COOKIE_HASH_KEY"),
		CookieBlockKey: os.Getenv("COOKIE_BLOCK_KEY"),
		CookieSecure:   getEnvBoolOrDefault("COOKIE_SECURE", !dev),
		HTTPSRedirect:  getEnvBoolOrDefault("HTTPS_REDIRECT", !dev),
		HSTSMaxAge:     getEnvDurationOrDefault("HSTS_MAX_AGE", 30*24*time.Hour),

		TokenLifespan:    getEnvDurationOrDefault("TOKEN_LIFESPAN", 3*time.Hour),
		LockoutOnFailure: getEnvBoolOrDefault("LOCKOUT_ON_FAILURE", false),
		LockoutMaxFailed: getEnvIntOrDefault("LOCKOUT_MAX_FAILED", 5),
		LockoutDuration:  getEnvDurationOrDefault("LOCKOUT_DURATION", 5*time.Minute),
		SessionTTL:       getEnvDurationOrDefault("SESSION_TTL", 14*24*time.Hour),
		DefaultCulture:   getEnvOrDefault("DEFAULT_CULTURE", "zh-Hans"),
		PublicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),

		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:         os.Getenv("SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("SMTP_PASSWORD"),
		MailFrom:             getEnvOrDefault("MAIL_FROM", "no-reply@localhost"),
		MailFromName:         getEnvOrDefault("MAIL_FROM_NAME", "Toupiao"),
		MailQueueURL:         os.Getenv("MAIL_QUEUE_REDIS_URL"),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		envFileErrs: envFileErrs,
	}

	// The limiter defaults are read at package init, before .env is loaded.
	httpx.StrictLimit = httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit)
	httpx.ModerateLimit = httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit)
	httpx.LenientLimit = httpx.ParseRateLimitFromEnv("LENIENT", httpx.LenientLimit)
	httpx.PublicLimit = httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit)

	return cfg
}

// loadDotEnv loads each file that exists. Earlier files win. Missing files
// are skipped; other failures are returned.
func loadDotEnv(files ...string) []error {
	var errs []error
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errs
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

package webauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the whole runtime configuration, read from the environment once
// at startup and handed to components.
type Config struct {
	Addr      string `env:"WEBAUTH_ADDR" envDefault:":8080"`
	BaseURL   string `env:"WEBAUTH_BASE_URL"`
	LogFormat string `env:"WEBAUTH_LOG_FORMAT" envDefault:"text"`
	// html renders the bundled templates, json answers with view data
	Renderer string `env:"WEBAUTH_RENDERER" envDefault:"html"`

	RecaptchaSiteKey   string `env:"RECAPTCHA_SITE_KEY"`
	RecaptchaSecretKey string `env:"RECAPTCHA_SECRET_KEY"`
	RecaptchaVerifyURL string `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL"`
	StateSecret        string `env:"OAUTH2_STATE_SECRET"`
	ClientURL          string `env:"CLIENT_URL" envDefault:"/auth/login/success"`
	FailureURL         string `env:"OAUTH2_FAILURE_URL" envDefault:"/auth/login/failed"`

	MailFrom     string `env:"EMAIL" envDefault:"no-reply@localhost"`
	MailBackend  string `env:"MAIL_BACKEND" envDefault:"console"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPSSL      bool   `env:"SMTP_SSL"`

	SessionLifetime     time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE"`
	RedisURL            string        `env:"REDIS_URL"`

	StoreBackend       string `env:"STORE_BACKEND" envDefault:"fs"`
	StorePath          string `env:"STORE_PATH" envDefault:"./data"`
	DatabaseURL        string `env:"DATABASE_URL"`
	DatastoreProject   string `env:"DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"DATASTORE_NAMESPACE"`
	CredentialsFile    string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	HashAlgorithm        string `env:"HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost           int    `env:"BCRYPT_COST" envDefault:"10"`
	HideAccountExistence bool   `env:"HIDE_ACCOUNT_EXISTENCE"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// Validate rejects combinations that cannot work at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case "fs":
		if c.StorePath == "" {
			errs = append(errs, errors.New("STORE_PATH is required for the fs store"))
		}
	case "sqlite":
		if c.DatabaseURL == "" && c.StorePath == "" {
			errs = append(errs, errors.New("DATABASE_URL or STORE_PATH is required for the sqlite store"))
		}
	case "postgres", "gorm":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s store", c.StoreBackend))
		}
	case "datastore":
		if c.DatastoreProject == "" {
			errs = append(errs, errors.New("DATASTORE_PROJECT is required for the datastore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.MailBackend {
	case "console":
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp mailer"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_BACKEND %q", c.MailBackend))
	}

	switch c.HashAlgorithm {
	case "bcrypt", "argon2":
	default:
		errs = append(errs, fmt.Errorf("unknown HASH_ALGORITHM %q", c.HashAlgorithm))
	}

	switch c.Renderer {
	case "html", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown WEBAUTH_RENDERER %q", c.Renderer))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown WEBAUTH_LOG_FORMAT %q", c.LogFormat))
	}

	if c.GoogleEnabled() {
		if c.GoogleClientSecret == "" || c.GoogleCallbackURL == "" {
			errs = append(errs, errors.New("OAUTH2_GOOGLE_CLIENT_SECRET and OAUTH2_GOOGLE_CALLBACK_URL are required with OAUTH2_GOOGLE_CLIENT_ID"))
		}
		if c.StateSecret == "" {
			errs = append(errs, errors.New("OAUTH2_STATE_SECRET is required with OAUTH2_GOOGLE_CLIENT_ID"))
		}
	}

	if c.RecaptchaSecretKey == "" {
		// every captcha check fails closed without a secret
		errs = append(errs, errors.New("RECAPTCHA_SECRET_KEY is required"))
	}

	return errors.Join(errs...)
}

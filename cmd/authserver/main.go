// Package main runs the web authentication server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/panyam/webauth"
	"github.com/panyam/webauth/captcha"
	"github.com/panyam/webauth/mail"
	"github.com/panyam/webauth/oauth2"
	"github.com/panyam/webauth/password"
	"github.com/panyam/webauth/stores/fs"
	"github.com/panyam/webauth/stores/gae"
	gormstore "github.com/panyam/webauth/stores/gorm"
	"github.com/panyam/webauth/stores/redisstore"
	"github.com/panyam/webauth/stores/sqldb"
	"github.com/panyam/webauth/views"
)

func main() {
	cfg, err := webauth.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(newLogger(cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func run(ctx context.Context, cfg *webauth.Config) error {
	users, closeUsers, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()

	hasher, err := newHasher(cfg)
	if err != nil {
		return err
	}
	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}
	recaptcha := captcha.NewRecaptcha(cfg.RecaptchaSecretKey)
	recaptcha.VerifyURL = cfg.RecaptchaVerifyURL

	service := webauth.NewService(users, recaptcha, mailer)
	service.Hasher = hasher
	service.HideAccountExistence = cfg.HideAccountExistence

	sessionCfg := webauth.SessionConfig{
		Lifetime:     cfg.SessionLifetime,
		CookieSecure: cfg.SessionCookieSecure,
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		sessionCfg.Store = redisstore.New(client)
	}

	web := webauth.New(service, webauth.NewSessionGate(sessionCfg))
	web.SiteKey = cfg.RecaptchaSiteKey
	web.LoginSuccessURL = cfg.ClientURL
	web.BaseURL = cfg.BaseURL
	if cfg.Renderer == "html" {
		renderer, err := webauth.NewTemplateRenderer(views.FS, "*.html")
		if err != nil {
			return err
		}
		web.Renderer = renderer
	}

	if cfg.GoogleEnabled() {
		signer, err := oauth2.NewStateSigner([]byte(cfg.StateSecret))
		if err != nil {
			return err
		}
		google := oauth2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, signer, web.HandleUser)
		google.FailureURL = cfg.FailureURL
		web.AddAuth("/auth/google", google.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr, "store", cfg.StoreBackend, "mail", cfg.MailBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newHasher(cfg *webauth.Config) (webauth.Hasher, error) {
	if cfg.HashAlgorithm == "argon2" {
		return password.NewArgon2(password.DefaultArgon2Params)
	}
	return password.NewBcrypt(cfg.BcryptCost), nil
}

func newMailer(cfg *webauth.Config) (webauth.Mailer, error) {
	if cfg.MailBackend == "smtp" {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			SSL:      cfg.SMTPSSL,
		})
	}
	return &webauth.ConsoleMailer{From: cfg.MailFrom}, nil
}

// openDirectory builds the configured UserDirectory and a func releasing it.
func openDirectory(ctx context.Context, cfg *webauth.Config) (webauth.UserDirectory, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(cfg.StorePath, 0755); err != nil {
				return nil, noop, err
			}
			dsn = "file:" + filepath.Join(cfg.StorePath, "webauth.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
		store, err := sqldb.Open(ctx, sqldb.DialectSQLite, dsn)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil

	case "postgres":
		store, err := sqldb.Open(ctx, sqldb.DialectPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil

	case "gorm":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, noop, fmt.Errorf("open gorm: %w", err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, noop, fmt.Errorf("migrate gorm: %w", err)
		}
		closeDB := noop
		if sqlDB, err := db.DB(); err == nil {
			closeDB = func() { sqlDB.Close() }
		}
		return gormstore.NewUserStore(db), closeDB, nil

	case "datastore":
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("datastore client: %w", err)
		}
		return gae.NewUserStore(client, cfg.DatastoreNamespace), func() { client.Close() }, nil
	}

	return fs.NewFSUserStore(cfg.StorePath), noop, nil
}

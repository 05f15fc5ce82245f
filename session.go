package webauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Session key holding the authenticated email
const sessionUserEmailKey = "userEmail"

// Session is the per-request view of the caller's server-held session.
// An empty UserEmail means the caller is not authenticated.
type Session interface {
	UserEmail() string
	SetUserEmail(email string) error
	Destroy() error
}

// SessionGate issues and tears down cookie-carried sessions on top of an scs
// session manager. The manager's store owns expiry.
type SessionGate struct {
	Manager *scs.SessionManager
}

// SessionConfig tunes the session cookie.
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieSecure bool
	Store        scs.Store
}

// NewSessionGate creates a gate with a fresh scs manager. A nil Store keeps
// scs's in-memory default.
func NewSessionGate(cfg SessionConfig) *SessionGate {
	sm := scs.New()
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.Secure = cfg.CookieSecure
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	if cfg.Store != nil {
		sm.Store = cfg.Store
	}
	return &SessionGate{Manager: sm}
}

// LoadAndSave loads the caller's session before next runs and commits it
// afterwards. Every handler that calls For must run under it.
func (g *SessionGate) LoadAndSave(next http.Handler) http.Handler {
	return g.Manager.LoadAndSave(next)
}

// For returns the session handle for the request.
func (g *SessionGate) For(r *http.Request) Session {
	return &requestSession{sm: g.Manager, ctx: r.Context()}
}

type requestSession struct {
	sm  *scs.SessionManager
	ctx context.Context
}

func (s *requestSession) UserEmail() string {
	return s.sm.GetString(s.ctx, sessionUserEmailKey)
}

// SetUserEmail renews the session token before binding so a token issued
// before authentication is never promoted.
func (s *requestSession) SetUserEmail(email string) error {
	if err := s.sm.RenewToken(s.ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	s.sm.Put(s.ctx, sessionUserEmailKey, email)
	return nil
}

func (s *requestSession) Destroy() error {
	if err := s.sm.Destroy(s.ctx); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

package oauth2

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Cookie names used across the two legs of a login
const (
	StateCookieName       = "oauthstate"
	CallbackURLCookieName = "oauthCallbackURL"
)

type HandleUserFunc func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

// OauthRedirector starts a login: it plants the state nonce cookie and sends
// the browser to the provider's consent page.
func OauthRedirector(oauthConfig *oauth2.Config, signer *StateSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// remember where to come back to
		if callbackURL := LocalPath(r.URL.Query().Get("callbackURL")); callbackURL != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     CallbackURLCookieName,
				Value:    callbackURL,
				Path:     "/",
				MaxAge:   120, // keep this short
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		state, nonce, err := signer.Issue()
		if err != nil {
			slog.Error("error issuing oauth state", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		ttl := signer.TTL
		if ttl <= 0 {
			ttl = DefaultStateTTL
		}
		http.SetCookie(w, &http.Cookie{
			Name:     StateCookieName,
			Value:    nonce,
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, oauthConfig.AuthCodeURL(state), http.StatusFound)
	}
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   StateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// TakeCallbackURL returns the path remembered by OauthRedirector and clears
// the cookie so it is used for one redirect only. It returns "" when no
// usable path was remembered.
func TakeCallbackURL(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(CallbackURLCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:    CallbackURLCookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	return LocalPath(c.Value)
}

// LocalPath returns raw if it is a path on this site and "" otherwise.
// Absolute URLs and scheme-relative ("//host") forms are refused.
func LocalPath(raw string) string {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return raw
}

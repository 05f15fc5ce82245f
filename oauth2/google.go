package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Google's OpenID Connect userinfo endpoint. Returns sub, email, name and picture.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// DefaultFailureURL is where failed logins are sent.
const DefaultFailureURL = "/auth/login/failed"

// GoogleOAuth2 runs the Google authorization code flow. Mount it on a path P;
// requests to P start a login and requests to P/callback finish it.
type GoogleOAuth2 struct {
	HandleUser HandleUserFunc

	// UserInfoURL is the URL to fetch user info from. Can be overridden for testing.
	UserInfoURL string

	// FailureURL receives the browser when consent, state, exchange or
	// profile retrieval fails.
	FailureURL string

	State  *StateSigner
	Logger *slog.Logger

	oauthConfig oauth2.Config
	httpClient  *http.Client
}

func NewGoogleOAuth2(clientID, clientSecret, callbackURL string, signer *StateSigner, handleUser HandleUserFunc) *GoogleOAuth2 {
	return &GoogleOAuth2{
		HandleUser:  handleUser,
		UserInfoURL: GoogleUserInfoURL,
		FailureURL:  DefaultFailureURL,
		State:       signer,
		oauthConfig: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// SetHTTPClient sets the client used for the token exchange and userinfo calls.
func (g *GoogleOAuth2) SetHTTPClient(c *http.Client) {
	g.httpClient = c
}

func (g *GoogleOAuth2) SetOAuthEndpoint(e oauth2.Endpoint) {
	g.oauthConfig.Endpoint = e
}

func (g *GoogleOAuth2) Handler() http.Handler {
	return g
}

func (g *GoogleOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/callback") {
		g.handleCallback(w, r)
		return
	}
	OauthRedirector(&g.oauthConfig, g.State)(w, r)
}

func (g *GoogleOAuth2) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *GoogleOAuth2) fail(w http.ResponseWriter, r *http.Request, reason string, err error) {
	g.logger().Warn("google login failed", "reason", reason, "err", err)
	http.Redirect(w, r, g.FailureURL, http.StatusTemporaryRedirect)
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	nonce := ""
	if c, err := r.Cookie(StateCookieName); err == nil {
		nonce = c.Value
	}
	// the nonce is single use whatever happens next
	clearStateCookie(w)

	if e := r.FormValue("error"); e != "" {
		g.fail(w, r, "consent denied", fmt.Errorf("provider error: %s", e))
		return
	}
	if err := g.State.Check(r.FormValue("state"), nonce); err != nil {
		g.fail(w, r, "state", err)
		return
	}

	ctx := r.Context()
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	token, err := g.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		g.fail(w, r, "code exchange", err)
		return
	}
	userInfo, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		g.fail(w, r, "userinfo", err)
		return
	}
	g.HandleUser("google", token, userInfo, w, r)
}

func (g *GoogleOAuth2) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.oauthConfig.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var userInfo map[string]any
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return userInfo, nil
}

package webauth_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	wa "github.com/panyam/webauth"
	"github.com/panyam/webauth/oauth2"
)

type testServer struct {
	*httptest.Server
	client  *http.Client
	web     *wa.WebAuth
	users   *memDirectory
	mailer  *recordingMailer
	captcha *captchaSwitch
}

// fakeProvider completes a federated login with a fixed profile.
func fakeProvider(web *wa.WebAuth, userInfo map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.HandleUser("google", nil, userInfo, w, r)
	})
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc, users, mailer, captcha := newTestService()
	web := wa.New(svc, wa.NewSessionGate(wa.SessionConfig{}))
	web.SiteKey = "site-key"
	web.AddAuth("/auth/google", fakeProvider(web, map[string]any{
		"sub": "g-1", "email": "fed@example.com", "name": "Google User",
	}))
	web.AddAuth("/auth/noemail", fakeProvider(web, map[string]any{"sub": "g-2", "name": "No Mail"}))
	web.AddAuth("/auth/empty", fakeProvider(web, nil))

	srv := httptest.NewServer(web.Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{Server: srv, client: client, web: web, users: users, mailer: mailer, captcha: captcha}
}

type viewBody struct {
	View    string `json:"view"`
	Message string `json:"message"`
	SiteKey string `json:"sitekey"`
	Email   string `json:"email"`
	Error   bool   `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, form url.Values) (*http.Response, viewBody) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var vb viewBody
	data, _ := io.ReadAll(resp.Body)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &vb); err != nil {
			t.Fatalf("decode body %q: %v", data, err)
		}
	} else {
		vb.Message = strings.TrimSpace(string(data))
	}
	return resp, vb
}

func (s *testServer) signup(t *testing.T, email, pass string) (*http.Response, viewBody) {
	return s.do(t, http.MethodPost, "/user/signup", url.Values{
		"username": {"user"}, "email": {email}, "password": {pass}, "cpassword": {pass},
		wa.CaptchaField: {"token"},
	})
}

func (s *testServer) signin(t *testing.T, email, pass string) (*http.Response, viewBody) {
	return s.do(t, http.MethodPost, "/user/signin", url.Values{
		"email": {email}, "password": {pass}, wa.CaptchaField: {"token"},
	})
}

func expectStatus(t *testing.T, resp *http.Response, body viewBody, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("Expected status %d, got %d. Body: %+v", want, resp.StatusCode, body)
	}
}

func TestFormPages(t *testing.T) {
	s := newTestServer(t)
	for _, view := range []string{wa.ViewSignup, wa.ViewSignin, wa.ViewForgotPassword} {
		resp, body := s.do(t, http.MethodGet, "/user/"+view, nil)
		expectStatus(t, resp, body, http.StatusOK)
		if body.View != view || body.SiteKey != "site-key" {
			t.Errorf("Expected %s view with site key, got %+v", view, body)
		}
	}
}

func TestSignupAndSignInJourney(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.signup(t, "alice@example.com", "pw1")
	expectStatus(t, resp, body, http.StatusCreated)
	if body.View != wa.ViewSignin || body.Message != "User created successfully" {
		t.Errorf("Unexpected signup response %+v", body)
	}

	resp, body = s.signup(t, "alice@example.com", "pw2")
	expectStatus(t, resp, body, http.StatusConflict)
	if body.View != wa.ViewSignup || body.Message != "User already exists" {
		t.Errorf("Unexpected duplicate response %+v", body)
	}

	resp, body = s.signin(t, "alice@example.com", "wrong")
	expectStatus(t, resp, body, http.StatusBadRequest)

	resp, body = s.do(t, http.MethodGet, "/user/homepage", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)
	if body.View != wa.ViewSignin {
		t.Errorf("Expected sign-in view, got %+v", body)
	}

	resp, body = s.signin(t, "alice@example.com", "pw1")
	expectStatus(t, resp, body, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != wa.DefaultHomeURL {
		t.Errorf("Expected redirect to %s, got %s", wa.DefaultHomeURL, loc)
	}

	resp, body = s.do(t, http.MethodGet, "/user/homepage", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if body.View != wa.ViewHomepage || body.Email != "alice@example.com" {
		t.Errorf("Unexpected homepage %+v", body)
	}

	resp, body = s.do(t, http.MethodGet, "/user/logout", nil)
	expectStatus(t, resp, body, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != wa.DefaultSignInURL {
		t.Errorf("Expected redirect to %s, got %s", wa.DefaultSignInURL, loc)
	}

	resp, body = s.do(t, http.MethodGet, "/user/homepage", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)
}

func TestSignupPasswordMismatch(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/user/signup", url.Values{
		"email": {"a@example.com"}, "password": {"one"}, "cpassword": {"two"}, wa.CaptchaField: {"token"},
	})
	expectStatus(t, resp, body, http.StatusBadRequest)
	if body.Message != "Passwords don't match" {
		t.Errorf("Unexpected message %q", body.Message)
	}
	if s.users.count() != 0 {
		t.Error("No user should be created")
	}
}

func TestCaptchaFailureCreatesNothing(t *testing.T) {
	s := newTestServer(t)
	s.captcha.ok = false

	resp, body := s.signup(t, "alice@example.com", "pw")
	expectStatus(t, resp, body, http.StatusBadRequest)
	if body.Message != "Captcha verification failed" {
		t.Errorf("Unexpected message %q", body.Message)
	}
	if s.users.count() != 0 {
		t.Error("No user should be created")
	}
	if ip := s.captcha.lastRemoteIP(); ip != "127.0.0.1" {
		t.Errorf("Expected the client address to reach the verifier, got %q", ip)
	}
}

func TestChangePasswordCaptchaFailureWithSession(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "dave@example.com", "old")
	s.signin(t, "dave@example.com", "old")
	s.captcha.ok = false

	resp, body := s.do(t, http.MethodPost, "/user/change-password", url.Values{
		"oldPassword": {"old"}, "newPassword": {"new"}, wa.CaptchaField: {"token"},
	})
	expectStatus(t, resp, body, http.StatusBadRequest)
	if body.Message != "Captcha verification failed" {
		t.Errorf("Unexpected message %q", body.Message)
	}

	s.captcha.ok = true
	resp, body = s.signin(t, "dave@example.com", "old")
	expectStatus(t, resp, body, http.StatusFound)
}

func TestJSONBodies(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/user/signup", strings.NewReader(
		`{"username":"j","email":"json@example.com","password":"pw","cpassword":"pw","g-recaptcha-response":"token"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, s.URL+"/user/signin", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.client.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestForgotPasswordJourney(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "carol@example.com", "forgotten")

	resp, body := s.do(t, http.MethodPost, "/user/forgot-password", url.Values{
		"email": {"carol@example.com"}, wa.CaptchaField: {"token"},
	})
	expectStatus(t, resp, body, http.StatusCreated)
	if body.Message != "New Password sent to your email" {
		t.Errorf("Unexpected message %q", body.Message)
	}

	msg, ok := s.mailer.last()
	if !ok {
		t.Fatal("Expected a reset mail")
	}
	temporary := strings.TrimPrefix(msg.Text, "Your new password is: ")

	resp, body = s.signin(t, "carol@example.com", "forgotten")
	expectStatus(t, resp, body, http.StatusBadRequest)
	resp, body = s.signin(t, "carol@example.com", temporary)
	expectStatus(t, resp, body, http.StatusFound)
}

func TestForgotPasswordMailFailure(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "carol@example.com", "keep")
	s.mailer.err = errBoom

	resp, body := s.do(t, http.MethodPost, "/user/forgot-password", url.Values{
		"email": {"carol@example.com"}, wa.CaptchaField: {"token"},
	})
	expectStatus(t, resp, body, http.StatusInternalServerError)
	if strings.Contains(body.Message, "boom") {
		t.Errorf("Cause leaked: %q", body.Message)
	}

	resp, body = s.signin(t, "carol@example.com", "keep")
	expectStatus(t, resp, body, http.StatusFound)
}

func TestChangePasswordJourney(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "dave@example.com", "old")

	change := url.Values{"oldPassword": {"old"}, "newPassword": {"new"}, wa.CaptchaField: {"token"}}

	s.users.finds = 0
	resp, body := s.do(t, http.MethodPost, "/user/change-password", change)
	expectStatus(t, resp, body, http.StatusUnauthorized)
	if s.users.finds != 0 {
		t.Errorf("Expected no lookups without a session, got %d", s.users.finds)
	}

	resp, body = s.do(t, http.MethodGet, "/user/change-password", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)

	s.signin(t, "dave@example.com", "old")

	resp, body = s.do(t, http.MethodGet, "/user/change-password", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if body.View != wa.ViewChangePassword {
		t.Errorf("Unexpected view %+v", body)
	}

	resp, body = s.do(t, http.MethodPost, "/user/change-password", change)
	expectStatus(t, resp, body, http.StatusCreated)
	if body.Message != "Password changed successfully" {
		t.Errorf("Unexpected message %q", body.Message)
	}

	resp, body = s.signin(t, "dave@example.com", "old")
	expectStatus(t, resp, body, http.StatusBadRequest)
	resp, body = s.signin(t, "dave@example.com", "new")
	expectStatus(t, resp, body, http.StatusFound)
}

func TestFederatedJourney(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/auth/google/callback", nil)
	expectStatus(t, resp, body, http.StatusFound)
	if loc := resp.Header.Get("Location"); loc != wa.DefaultLoginSuccessURL {
		t.Errorf("Expected redirect to %s, got %s", wa.DefaultLoginSuccessURL, loc)
	}

	resp, body = s.do(t, http.MethodGet, "/auth/login/success", nil)
	expectStatus(t, resp, body, http.StatusOK)
	if body.View != wa.ViewHomepage || body.Message != "Welcome Google User!" {
		t.Errorf("Unexpected welcome %+v", body)
	}

	// a second login reuses the account
	s.do(t, http.MethodGet, "/auth/google/callback", nil)
	if s.users.count() != 1 || s.users.creates != 1 {
		t.Errorf("Expected one user from one create, got %d users %d creates", s.users.count(), s.users.creates)
	}
	if u := s.users.get("fed@example.com"); u == nil || u.Provider != wa.ProviderGoogle {
		t.Errorf("Expected a google user, got %+v", u)
	}

	resp, body = s.do(t, http.MethodGet, "/auth/logout", nil)
	expectStatus(t, resp, body, http.StatusFound)

	resp, body = s.do(t, http.MethodGet, "/auth/login/success", nil)
	expectStatus(t, resp, body, http.StatusForbidden)
}

func TestFederatedLoginReusesLocalAccount(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "fed@example.com", "local")

	resp, body := s.do(t, http.MethodGet, "/auth/google", nil)
	expectStatus(t, resp, body, http.StatusFound)

	u := s.users.get("fed@example.com")
	if u.Provider != wa.ProviderLocal {
		t.Errorf("Local account must keep its provider, got %q", u.Provider)
	}
	resp, body = s.signin(t, "fed@example.com", "local")
	expectStatus(t, resp, body, http.StatusFound)
}

func TestFederatedLoginReturnsToCallbackURL(t *testing.T) {
	s := newTestServer(t)
	u, _ := url.Parse(s.URL)
	remember := func(path string) {
		s.client.Jar.SetCookies(u, []*http.Cookie{{Name: oauth2.CallbackURLCookieName, Value: path, Path: "/"}})
	}

	tests := []struct {
		name     string
		cookie   string
		baseURL  string
		location string
	}{
		{"local path", "/dashboard", "", "/dashboard"},
		{"local path under base url", "/dashboard?tab=1", "https://app.example.com/", "https://app.example.com/dashboard?tab=1"},
		{"absolute url refused", "https://evil.example.com/x", "", wa.DefaultLoginSuccessURL},
		{"scheme relative refused", "//evil.example.com/x", "", wa.DefaultLoginSuccessURL},
		{"no cookie", "", "", wa.DefaultLoginSuccessURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.web.BaseURL = tt.baseURL
			if tt.cookie != "" {
				remember(tt.cookie)
			}
			resp, body := s.do(t, http.MethodGet, "/auth/google/callback", nil)
			expectStatus(t, resp, body, http.StatusFound)
			if loc := resp.Header.Get("Location"); loc != tt.location {
				t.Errorf("Expected redirect to %s, got %s", tt.location, loc)
			}
			for _, c := range s.client.Jar.Cookies(u) {
				if c.Name == oauth2.CallbackURLCookieName {
					t.Errorf("Expected %s cookie to be cleared, still %q", c.Name, c.Value)
				}
			}
		})
	}
}

func TestFederatedFailures(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/auth/noemail", nil)
	expectStatus(t, resp, body, http.StatusForbidden)
	if !body.Error || body.Message != "Google account has no email" {
		t.Errorf("Unexpected body %+v", body)
	}

	resp, body = s.do(t, http.MethodGet, "/auth/empty", nil)
	expectStatus(t, resp, body, http.StatusForbidden)
	if body.Message != "Not Authorized (no user data)" {
		t.Errorf("Unexpected body %+v", body)
	}

	resp, body = s.do(t, http.MethodGet, "/auth/login/failed", nil)
	expectStatus(t, resp, body, http.StatusUnauthorized)
	if !body.Error || body.Message != "Google login failed" {
		t.Errorf("Unexpected body %+v", body)
	}

	if s.users.count() != 0 {
		t.Error("Failed federated logins must not create users")
	}
}

func TestSessionTokenRenewedOnSignIn(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "erin@example.com", "pw")

	u, _ := url.Parse(s.URL)
	s.signin(t, "erin@example.com", "pw")
	first := s.client.Jar.Cookies(u)
	s.signin(t, "erin@example.com", "pw")
	second := s.client.Jar.Cookies(u)

	if len(first) == 0 || len(second) == 0 {
		t.Fatal("Expected a session cookie")
	}
	if first[0].Value == second[0].Value {
		t.Error("Expected a fresh session token on each sign-in")
	}
}

package webauth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Default landing pages
const (
	DefaultHomeURL         = "/user/homepage"
	DefaultSignInURL       = "/user/signin"
	DefaultLoginSuccessURL = "/auth/login/success"
)

// WebAuth is the HTTP face of a Service: it parses forms, runs flows and
// renders views. Mount Handler() at the root of the site.
type WebAuth struct {
	Service  *Service
	Sessions *SessionGate
	Renderer Renderer

	// reCAPTCHA site key handed to every form view
	SiteKey string

	HomeURL         string
	SignInURL       string
	LoginSuccessURL string

	// prefixed to the path a federated login asked to return to
	BaseURL string

	Logger *slog.Logger

	providers []provider
}

type provider struct {
	prefix  string
	handler http.Handler
}

func New(service *Service, sessions *SessionGate) *WebAuth {
	return (&WebAuth{Service: service, Sessions: sessions}).EnsureDefaults()
}

func (a *WebAuth) EnsureDefaults() *WebAuth {
	if a.Renderer == nil {
		a.Renderer = JSONRenderer{}
	}
	if a.HomeURL == "" {
		a.HomeURL = DefaultHomeURL
	}
	if a.SignInURL == "" {
		a.SignInURL = DefaultSignInURL
	}
	if a.LoginSuccessURL == "" {
		a.LoginSuccessURL = DefaultLoginSuccessURL
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	return a
}

// AddAuth mounts a federated provider. The handler receives every request
// under prefix, including prefix itself, with the path left intact.
func (a *WebAuth) AddAuth(prefix string, handler http.Handler) *WebAuth {
	prefix = strings.TrimSuffix(prefix, "/")
	a.Logger.Info("adding auth provider", "prefix", prefix)
	a.providers = append(a.providers, provider{prefix: prefix, handler: handler})
	return a
}

// Router builds the route table. Handlers need a loaded session, so serve
// it through Handler unless you wrap it with Sessions.LoadAndSave yourself.
func (a *WebAuth) Router() *mux.Router {
	a.EnsureDefaults()
	r := mux.NewRouter()
	r.Use(withRemoteIP)

	u := r.PathPrefix("/user").Subrouter()
	u.HandleFunc("/signup", a.showPage(ViewSignup)).Methods(http.MethodGet)
	u.HandleFunc("/signup", a.handleSignup).Methods(http.MethodPost)
	u.HandleFunc("/signin", a.showPage(ViewSignin)).Methods(http.MethodGet)
	u.HandleFunc("/signin", a.handleSignIn).Methods(http.MethodPost)
	u.Handle("/homepage", a.RequireSession("Please sign in to view the homepage",
		http.HandlerFunc(a.showHomepage))).Methods(http.MethodGet)
	u.HandleFunc("/forgot-password", a.showPage(ViewForgotPassword)).Methods(http.MethodGet)
	u.HandleFunc("/forgot-password", a.handleForgotPassword).Methods(http.MethodPost)
	u.Handle("/change-password", a.RequireSession("Please sign in to change the password",
		a.showPage(ViewChangePassword))).Methods(http.MethodGet)
	// POST runs its own session check so the flow can refuse before any read
	u.HandleFunc("/change-password", a.handleChangePassword).Methods(http.MethodPost)
	u.HandleFunc("/logout", a.handleLogout).Methods(http.MethodGet)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login/success", a.handleLoginSuccess).Methods(http.MethodGet)
	auth.HandleFunc("/login/failed", a.handleLoginFailed).Methods(http.MethodGet)
	auth.HandleFunc("/logout", a.handleFederatedLogout).Methods(http.MethodGet)

	for _, p := range a.providers {
		r.Handle(p.prefix, p.handler)
		r.PathPrefix(p.prefix + "/").Handler(p.handler)
	}
	return r
}

// Handler is the Router with sessions loaded and committed around it.
func (a *WebAuth) Handler() http.Handler {
	return a.Sessions.LoadAndSave(a.Router())
}

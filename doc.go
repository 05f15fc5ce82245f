// Package webauth provides session based web authentication: local accounts
// with email and password, Google sign-in, password reset by mail and
// password change, all behind a CAPTCHA.
//
// Every account is a single User keyed by email. Signing up locally and
// signing in with Google for the same address lead to the same User; the
// first path to see an email creates the account and later paths reuse it.
//
// # Architecture
//
// Service: runs the flows (Signup, SignIn, SignInFederated, ForgotPassword,
// ChangePassword, Logout). Each flow validates its input, acts on the
// UserDirectory and returns a nil *AuthError on success. Flows never write
// responses.
//
// UserDirectory: persists users. Backends live under stores/ (files, SQLite,
// PostgreSQL, GORM, Cloud Datastore) and must reject a second Create for an
// email with ErrEmailTaken.
//
// SessionGate: binds the caller's scs session to an email after a successful
// sign-in and destroys it on logout.
//
// WebAuth: the HTTP shell. It parses forms, calls the Service and renders
// views through a Renderer.
//
// # Basic Usage
//
//	users := fs.NewFSUserStore("/path/to/storage")
//	service := webauth.NewService(users, captcha.NewRecaptcha(secret), &webauth.ConsoleMailer{From: "me@example.com"})
//	gate := webauth.NewSessionGate(webauth.SessionConfig{Lifetime: 24 * time.Hour})
//
//	web := webauth.New(service, gate)
//	web.SiteKey = siteKey
//
//	signer, _ := oauth2.NewStateSigner([]byte(stateSecret))
//	google := oauth2.NewGoogleOAuth2(clientID, clientSecret, callbackURL, signer, web.HandleUser)
//	web.AddAuth("/auth/google", google.Handler())
//
//	http.ListenAndServe(":8080", web.Handler())
//
// # Routes
//
//	GET/POST /user/signup
//	GET/POST /user/signin
//	GET      /user/homepage            (signed in only)
//	GET/POST /user/forgot-password
//	GET/POST /user/change-password     (signed in only)
//	GET      /user/logout
//	GET      /auth/google, /auth/google/callback
//	GET      /auth/login/success, /auth/login/failed, /auth/logout
package webauth

package webauth

import (
	"context"
	"net/http"
)

type userEmailKey struct{}

// UserEmailFromContext returns the email RequireSession placed on the request.
func UserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey{}).(string)
	return email
}

// RequireSession lets the request through only when the session carries an
// email, and exposes that email via UserEmailFromContext. Anonymous callers
// get the sign-in view with a 401 and message.
func (a *WebAuth) RequireSession(message string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := a.Sessions.For(r).UserEmail()
		if email == "" {
			a.Renderer.Render(w, http.StatusUnauthorized, ViewSignin, a.viewData(message))
			return
		}
		// set the logged in email as a request scoped value
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userEmailKey{}, email)))
	})
}

// withRemoteIP puts the client address on the request context for the
// CAPTCHA verifier.
func withRemoteIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRemoteIP(r.Context(), remoteIP(r))))
	})
}

package webauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/panyam/webauth/oauth2"
	xoauth2 "golang.org/x/oauth2"
)

// Form field names
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "cpassword"
	FieldOldPassword     = "oldPassword"
	FieldNewPassword     = "newPassword"
)

type formValues map[string]string

func (f formValues) Get(key string) string { return f[key] }

// parseForm reads an urlencoded or JSON body into flat string values.
func parseForm(r *http.Request) (formValues, error) {
	out := formValues{}
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			return nil, fmt.Errorf("invalid post body: %w", err)
		}
		for k, v := range data {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("error parsing form: %w", err)
	}
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out, nil
}

func (a *WebAuth) viewData(message string) ViewData {
	return ViewData{Message: message, SiteKey: a.SiteKey}
}

// renderError draws view with the error's status and public message.
func (a *WebAuth) renderError(w http.ResponseWriter, r *http.Request, view string, authErr *AuthError) {
	if authErr.Status() >= http.StatusInternalServerError {
		a.Logger.Error("request failed", "path", r.URL.Path, "kind", authErr.Kind.String(), "err", authErr)
	}
	a.Renderer.Render(w, authErr.Status(), view, a.viewData(authErr.Public()))
}

func (a *WebAuth) badForm(w http.ResponseWriter, view string, err error) {
	a.Logger.Info("rejecting malformed form", "view", view, "err", err)
	a.Renderer.Render(w, http.StatusBadRequest, view, a.viewData("Invalid form data"))
}

func (a *WebAuth) showPage(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.Renderer.Render(w, http.StatusOK, view, a.viewData(""))
	}
}

func (a *WebAuth) showHomepage(w http.ResponseWriter, r *http.Request) {
	data := a.viewData("")
	data.Email = UserEmailFromContext(r.Context())
	a.Renderer.Render(w, http.StatusOK, ViewHomepage, data)
}

func (a *WebAuth) handleSignup(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		a.badForm(w, ViewSignup, err)
		return
	}
	_, authErr := a.Service.Signup(r.Context(), SignupRequest{
		Username:        form.Get(FieldUsername),
		Email:           form.Get(FieldEmail),
		Password:        form.Get(FieldPassword),
		ConfirmPassword: form.Get(FieldConfirmPassword),
		CaptchaToken:    form.Get(CaptchaField),
	})
	if authErr != nil {
		a.renderError(w, r, ViewSignup, authErr)
		return
	}
	a.Renderer.Render(w, http.StatusCreated, ViewSignin, a.viewData("User created successfully"))
}

func (a *WebAuth) handleSignIn(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		a.badForm(w, ViewSignin, err)
		return
	}
	_, authErr := a.Service.SignIn(r.Context(), a.Sessions.For(r), SignInRequest{
		Email:        form.Get(FieldEmail),
		Password:     form.Get(FieldPassword),
		CaptchaToken: form.Get(CaptchaField),
	})
	if authErr != nil {
		a.renderError(w, r, ViewSignin, authErr)
		return
	}
	http.Redirect(w, r, a.HomeURL, http.StatusFound)
}

func (a *WebAuth) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		a.badForm(w, ViewForgotPassword, err)
		return
	}
	authErr := a.Service.ForgotPassword(r.Context(), ForgotPasswordRequest{
		Email:        form.Get(FieldEmail),
		CaptchaToken: form.Get(CaptchaField),
	})
	if authErr != nil {
		a.renderError(w, r, ViewForgotPassword, authErr)
		return
	}
	a.Renderer.Render(w, http.StatusCreated, ViewSignin, a.viewData("New Password sent to your email"))
}

func (a *WebAuth) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.For(r)
	if sess.UserEmail() == "" {
		a.Renderer.Render(w, http.StatusUnauthorized, ViewSignin, a.viewData("Please sign in to change the password"))
		return
	}
	form, err := parseForm(r)
	if err != nil {
		a.badForm(w, ViewChangePassword, err)
		return
	}
	authErr := a.Service.ChangePassword(r.Context(), sess, ChangePasswordRequest{
		OldPassword:  form.Get(FieldOldPassword),
		NewPassword:  form.Get(FieldNewPassword),
		CaptchaToken: form.Get(CaptchaField),
	})
	if authErr != nil {
		view := ViewChangePassword
		if authErr.Kind == KindUnauthenticated {
			view = ViewSignin
		}
		a.renderError(w, r, view, authErr)
		return
	}
	a.Renderer.Render(w, http.StatusCreated, ViewSignin, a.viewData("Password changed successfully"))
}

func (a *WebAuth) handleLogout(w http.ResponseWriter, r *http.Request) {
	if authErr := a.Service.Logout(r.Context(), a.Sessions.For(r)); authErr != nil {
		http.Error(w, authErr.Public(), authErr.Status())
		return
	}
	http.Redirect(w, r, a.SignInURL, http.StatusFound)
}

func (a *WebAuth) handleFederatedLogout(w http.ResponseWriter, r *http.Request) {
	if authErr := a.Service.Logout(r.Context(), a.Sessions.For(r)); authErr != nil {
		writeJSONError(w, authErr.Status(), "Logout failed")
		return
	}
	http.Redirect(w, r, a.SignInURL, http.StatusFound)
}

// HandleUser finishes a federated login. Its signature matches
// oauth2.HandleUserFunc so it can be passed straight to a provider.
func (a *WebAuth) HandleUser(provider string, token *xoauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	callbackURL := oauth2.TakeCallbackURL(w, r)
	if len(userInfo) == 0 {
		writeJSONError(w, http.StatusForbidden, "Not Authorized (no user data)")
		return
	}
	_, authErr := a.Service.SignInFederated(r.Context(), a.Sessions.For(r), AssertionFromUserInfo(provider, userInfo))
	if authErr != nil {
		if authErr.Code == ErrCodeNoEmail {
			writeJSONError(w, http.StatusForbidden, authErr.Message)
			return
		}
		a.Logger.Error("federated sign-in failed", "provider", provider, "err", authErr)
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error during Google Sign-In")
		return
	}
	if callbackURL == "" {
		http.Redirect(w, r, a.LoginSuccessURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, strings.TrimSuffix(a.BaseURL, "/")+callbackURL, http.StatusFound)
}

func (a *WebAuth) handleLoginSuccess(w http.ResponseWriter, r *http.Request) {
	email := a.Sessions.For(r).UserEmail()
	if email == "" {
		writeJSONError(w, http.StatusForbidden, "Not Authorized")
		return
	}
	user, err := a.Service.Users.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeJSONError(w, http.StatusForbidden, "Not Authorized")
			return
		}
		a.Logger.Error("loading signed in user", "email", email, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal Server Error during Google Sign-In")
		return
	}
	data := a.viewData(fmt.Sprintf("Welcome %s!", user.DisplayName()))
	data.Email = user.Email
	a.Renderer.Render(w, http.StatusOK, ViewHomepage, data)
}

func (a *WebAuth) handleLoginFailed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusUnauthorized, "Google login failed")
}

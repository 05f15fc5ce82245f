package webauth

import (
	"context"
	"errors"
	"strings"

	"github.com/panyam/webauth/password"
)

// Assertion is an identity vouched for by a federated provider.
type Assertion struct {
	Provider string
	Subject  string // stable subject id ("sub")
	Email    string
	Name     string
}

// AssertionFromUserInfo reads the fields a provider's userinfo payload
// exposes. Providers that only send "id" have it used as the subject.
func AssertionFromUserInfo(provider string, userInfo map[string]any) Assertion {
	a := Assertion{Provider: provider}
	a.Email, _ = userInfo["email"].(string)
	a.Name, _ = userInfo["name"].(string)
	a.Subject, _ = userInfo["sub"].(string)
	if a.Subject == "" {
		a.Subject, _ = userInfo["id"].(string)
	}
	a.Email = strings.TrimSpace(a.Email)
	return a
}

// ResolveIdentity finds the user owning the asserted email or provisions one.
// An existing account, local or federated, is returned untouched.
func (s *Service) ResolveIdentity(ctx context.Context, a Assertion) (*User, *AuthError) {
	if a.Email == "" {
		return nil, NewAuthError(KindInvalid, ErrCodeNoEmail, "Google account has no email", "email")
	}

	user, err := s.Users.FindByEmail(ctx, a.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, internalError(err)
	}

	// The placeholder credential is the hashed subject. Federated login never
	// checks it; a random secret stands in when the provider sent no subject.
	secret := a.Subject
	if secret == "" {
		if secret, err = password.GenerateTemporary(32); err != nil {
			return nil, internalError(err)
		}
	}
	hash, err := s.Hasher.Hash(secret)
	if err != nil {
		return nil, internalError(err)
	}

	username := strings.TrimSpace(a.Name)
	if username == "" {
		username = "User"
	}
	provider := a.Provider
	if provider == "" {
		provider = ProviderGoogle
	}

	user, err = s.Users.Create(ctx, &User{
		Username:     username,
		Email:        a.Email,
		PasswordHash: hash,
		Provider:     provider,
	})
	if errors.Is(err, ErrEmailTaken) {
		// a concurrent signup or callback created it first; bind to the winner
		if user, err = s.Users.FindByEmail(ctx, a.Email); err != nil {
			return nil, internalError(err)
		}
		return user, nil
	}
	if err != nil {
		return nil, internalError(err)
	}

	s.logger().Info("provisioned federated user", "user_id", user.ID, "email", user.Email, "provider", provider)
	return user, nil
}

// SignInFederated resolves the assertion and binds the session to its email.
func (s *Service) SignInFederated(ctx context.Context, sess Session, a Assertion) (*User, *AuthError) {
	user, authErr := s.ResolveIdentity(ctx, a)
	if authErr != nil {
		return nil, authErr
	}
	if err := sess.SetUserEmail(user.Email); err != nil {
		return nil, NewAuthError(KindSession, ErrCodeSessionFailed, "Could not start a session", "").Wrap(err)
	}
	return user, nil
}

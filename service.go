package webauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/panyam/webauth/password"
)

// SignupRequest carries the signup form.
type SignupRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	CaptchaToken    string
}

// SignInRequest carries the local sign-in form.
type SignInRequest struct {
	Email        string
	Password     string
	CaptchaToken string
}

// ForgotPasswordRequest carries the forgot-password form.
type ForgotPasswordRequest struct {
	Email        string
	CaptchaToken string
}

// ChangePasswordRequest carries the change-password form. The email comes
// from the session, never from the request.
type ChangePasswordRequest struct {
	OldPassword  string
	NewPassword  string
	CaptchaToken string
}

// Service runs the authentication flows. Each flow validates, mutates and
// returns a nil *AuthError on success; rendering is left to the caller.
type Service struct {
	Users   UserDirectory
	Hasher  Hasher
	Captcha CaptchaVerifier
	Mailer  Mailer

	// Generates the temporary secret mailed by ForgotPassword.
	// Defaults to an 8 character lowercase alphanumeric string.
	TemporaryPassword func() (string, error)

	// When set, unknown emails look exactly like bad credentials on sign-in
	// and like success on forgot-password.
	HideAccountExistence bool

	Logger *slog.Logger
}

// NewService creates a Service with bcrypt hashing at the default work factor.
func NewService(users UserDirectory, captcha CaptchaVerifier, mailer Mailer) *Service {
	return &Service{
		Users:   users,
		Hasher:  password.NewBcrypt(password.DefaultBcryptCost),
		Captcha: captcha,
		Mailer:  mailer,
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) temporaryPassword() (string, error) {
	if s.TemporaryPassword != nil {
		return s.TemporaryPassword()
	}
	return password.GenerateTemporary(password.DefaultTemporaryLength)
}

func (s *Service) checkCaptcha(ctx context.Context, token string) *AuthError {
	if s.Captcha == nil || !s.Captcha.Verify(ctx, token) {
		return NewAuthError(KindInvalid, ErrCodeCaptchaFailed, "Captcha verification failed", CaptchaField)
	}
	return nil
}

// findUser looks up an email and tags a miss as NotFound.
func (s *Service) findUser(ctx context.Context, email string) (*User, *AuthError) {
	user, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, NewAuthError(KindNotFound, ErrCodeUserNotFound, "User doesn't exist", "email").Wrap(err)
	}
	if err != nil {
		return nil, internalError(err)
	}
	return user, nil
}

func invalidCredentials() *AuthError {
	return NewAuthError(KindInvalid, ErrCodeInvalidCreds, "Invalid credentials", "password")
}

// Signup registers a local account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, *AuthError) {
	if authErr := s.checkCaptcha(ctx, req.CaptchaToken); authErr != nil {
		return nil, authErr
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, NewAuthError(KindInvalid, ErrCodeMissingField, "Email is required", "email")
	}
	if req.Password == "" {
		return nil, NewAuthError(KindInvalid, ErrCodeMissingField, "Password is required", "password")
	}
	if req.Password != req.ConfirmPassword {
		return nil, NewAuthError(KindInvalid, ErrCodePasswordMismatch, "Passwords don't match", "cpassword")
	}

	_, err := s.Users.FindByEmail(ctx, email)
	if err == nil {
		return nil, NewAuthError(KindConflict, ErrCodeEmailExists, "User already exists", "email")
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, internalError(err)
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError(err)
	}

	user, err := s.Users.Create(ctx, &User{
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: hash,
		Provider:     ProviderLocal,
	})
	if errors.Is(err, ErrEmailTaken) {
		// lost a race against a concurrent signup for the same email
		return nil, NewAuthError(KindConflict, ErrCodeEmailExists, "User already exists", "email").Wrap(err)
	}
	if err != nil {
		return nil, internalError(err)
	}

	s.logger().Info("created local user", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// SignIn checks local credentials and binds the session to the user's email.
func (s *Service) SignIn(ctx context.Context, sess Session, req SignInRequest) (*User, *AuthError) {
	if authErr := s.checkCaptcha(ctx, req.CaptchaToken); authErr != nil {
		return nil, authErr
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, NewAuthError(KindInvalid, ErrCodeMissingField, "Email and password are required", "email")
	}

	user, authErr := s.findUser(ctx, email)
	if authErr != nil {
		if authErr.Kind == KindNotFound && s.HideAccountExistence {
			return nil, invalidCredentials()
		}
		return nil, authErr
	}

	if !s.Hasher.Verify(req.Password, user.PasswordHash) {
		s.logger().Info("sign-in rejected", "email", email, "reason", "password mismatch", "provider", user.Provider)
		return nil, invalidCredentials()
	}

	if err := sess.SetUserEmail(user.Email); err != nil {
		return nil, NewAuthError(KindSession, ErrCodeSessionFailed, "Could not start a session", "").Wrap(err)
	}
	s.upgradeHash(ctx, user, req.Password)
	return user, nil
}

// upgradeHash re-hashes a just-verified password when the stored hash was
// made with an older work factor. Failures are logged, never returned.
func (s *Service) upgradeHash(ctx context.Context, user *User, secret string) {
	r, ok := s.Hasher.(interface{ NeedsRehash(hash string) bool })
	if !ok || !r.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.Hasher.Hash(secret)
	if err != nil {
		s.logger().Warn("rehash failed", "email", user.Email, "err", err)
		return
	}
	updated := *user
	updated.PasswordHash = hash
	saved, err := s.Users.Save(ctx, &updated)
	if err != nil {
		s.logger().Warn("saving rehashed password failed", "email", user.Email, "err", err)
		return
	}
	*user = *saved
	s.logger().Info("password rehashed", "email", user.Email)
}

// ForgotPassword mails a temporary password and only then stores its hash,
// so a credential the user was never told about is never persisted.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) *AuthError {
	if authErr := s.checkCaptcha(ctx, req.CaptchaToken); authErr != nil {
		return authErr
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return NewAuthError(KindInvalid, ErrCodeMissingField, "Email is required", "email")
	}

	user, authErr := s.findUser(ctx, email)
	if authErr != nil {
		if authErr.Kind == KindNotFound && s.HideAccountExistence {
			s.logger().Info("password reset requested for unknown email", "email", email)
			return nil
		}
		return authErr
	}

	temporary, err := s.temporaryPassword()
	if err != nil {
		return internalError(err)
	}
	hash, err := s.Hasher.Hash(temporary)
	if err != nil {
		return internalError(err)
	}

	if err := s.Mailer.Send(ctx, passwordResetMessage(user.Email, temporary)); err != nil {
		s.logger().Warn("password reset mail failed", "email", user.Email, "err", err)
		return NewAuthError(KindExternal, ErrCodeMailFailed,
			"We could not send the reset email. Your password was not changed.", "email").Wrap(err)
	}

	user.PasswordHash = hash
	if _, err := s.Users.Save(ctx, user); err != nil {
		return internalError(err)
	}
	s.logger().Info("password reset", "user_id", user.ID, "email", user.Email)
	return nil
}

// ChangePassword replaces the password of the signed-in user.
func (s *Service) ChangePassword(ctx context.Context, sess Session, req ChangePasswordRequest) *AuthError {
	email := ""
	if sess != nil {
		email = sess.UserEmail()
	}
	if email == "" {
		return NewAuthError(KindUnauthenticated, ErrCodeNotAuthenticated, "Please sign in to change the password", "")
	}

	if authErr := s.checkCaptcha(ctx, req.CaptchaToken); authErr != nil {
		return authErr
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return NewAuthError(KindInvalid, ErrCodeMissingField, "Old and new passwords are required", "newPassword")
	}

	user, authErr := s.findUser(ctx, email)
	if authErr != nil {
		return authErr
	}
	if !s.Hasher.Verify(req.OldPassword, user.PasswordHash) {
		return invalidCredentials()
	}

	hash, err := s.Hasher.Hash(req.NewPassword)
	if err != nil {
		return internalError(err)
	}
	user.PasswordHash = hash
	if _, err := s.Users.Save(ctx, user); err != nil {
		return internalError(err)
	}
	s.logger().Info("password changed", "user_id", user.ID, "email", user.Email)
	return nil
}

// Logout destroys the caller's session.
func (s *Service) Logout(ctx context.Context, sess Session) *AuthError {
	if err := sess.Destroy(); err != nil {
		s.logger().Error("error signing out", "err", err)
		return NewAuthError(KindSession, ErrCodeSessionFailed, "Error signing out", "").Wrap(err)
	}
	return nil
}

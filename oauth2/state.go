package oauth2

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL bounds how long a provider round trip may take.
const DefaultStateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner issues the OAuth "state" parameter as a short lived HS256 JWT.
// The token's ID is a nonce that is also planted in a cookie, so a callback
// is only accepted from the browser that started the login.
type StateSigner struct {
	secret []byte
	TTL    time.Duration
}

// NewStateSigner signs with secret. An empty secret gets a random one, which
// only works while a single process serves both legs of the login.
func NewStateSigner(secret []byte) (*StateSigner, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate state secret: %w", err)
		}
	}
	return &StateSigner{secret: secret, TTL: DefaultStateTTL}, nil
}

// Issue returns a signed state and the nonce it carries.
func (s *StateSigner) Issue() (state string, nonce string, err error) {
	b := make([]byte, 16)
	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce = base64.RawURLEncoding.EncodeToString(b)

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        nonce,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return state, nonce, nil
}

// Check verifies the signature and expiry of state and that it carries nonce.
func (s *StateSigner) Check(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}

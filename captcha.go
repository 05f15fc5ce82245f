package webauth

import (
	"context"
	"net"
	"net/http"
)

// CaptchaField is the form field carrying the client's challenge token.
const CaptchaField = "g-recaptcha-response"

// CaptchaVerifier exchanges a client token for a human-verification verdict.
// Implementations fail closed: any error is reported as false.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) bool
}

type remoteIPKey struct{}

// WithRemoteIP records the client address a verifier may forward along with
// the token.
func WithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, remoteIPKey{}, ip)
}

// RemoteIPFromContext returns the address set by WithRemoteIP, or "".
func RemoteIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(remoteIPKey{}).(string)
	return ip
}

// remoteIP is the host part of r.RemoteAddr.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CaptchaFunc adapts a function to the CaptchaVerifier interface.
type CaptchaFunc func(ctx context.Context, token string) bool

func (f CaptchaFunc) Verify(ctx context.Context, token string) bool { return f(ctx, token) }

// Hasher turns secrets into salted one-way digests and checks them.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

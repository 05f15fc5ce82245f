// Package captcha verifies reCAPTCHA tokens against Google's siteverify
// endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/panyam/webauth"
)

// DefaultVerifyURL is Google's reCAPTCHA verification endpoint.
const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Recaptcha checks client tokens with a server-held secret key.
type Recaptcha struct {
	SecretKey string
	VerifyURL string
	Client    *http.Client
	Logger    *slog.Logger
}

func NewRecaptcha(secretKey string) *Recaptcha {
	return &Recaptcha{
		SecretKey: secretKey,
		VerifyURL: DefaultVerifyURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify reports whether the verification service accepted token. Empty
// tokens, transport errors, non-2xx responses and malformed payloads all
// count as failure.
func (r *Recaptcha) Verify(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	resp, err := r.verify(ctx, token)
	if err != nil {
		r.logger().Warn("captcha verification failed", "err", err)
		return false
	}
	if !resp.Success {
		r.logger().Info("captcha rejected", "error_codes", resp.ErrorCodes)
	}
	return resp.Success
}

func (r *Recaptcha) verify(ctx context.Context, token string) (*verifyResponse, error) {
	form := url.Values{}
	form.Set("secret", r.SecretKey)
	form.Set("response", token)
	if ip := webauth.RemoteIPFromContext(ctx); ip != "" {
		form.Set("remoteip", ip)
	}

	verifyURL := r.VerifyURL
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call verify endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("verify endpoint returned %s", res.Status)
	}
	var out verifyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &out, nil
}

func (r *Recaptcha) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Static always returns the same verdict. Useful for local development and
// tests where no verification service is reachable.
type Static bool

func (s Static) Verify(ctx context.Context, token string) bool { return bool(s) }

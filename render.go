package webauth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

// View names
const (
	ViewSignup         = "signup"
	ViewSignin         = "signin"
	ViewHomepage       = "homepage"
	ViewForgotPassword = "forgot-password"
	ViewChangePassword = "change-password"
)

// ViewData is everything a view receives.
type ViewData struct {
	Message string `json:"message"`
	SiteKey string `json:"sitekey,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Renderer draws a named view. It owns the response once called.
type Renderer interface {
	Render(w http.ResponseWriter, status int, view string, data ViewData)
}

// JSONRenderer writes {"view": ..., "message": ...} bodies. It is the
// default when no templates are configured and is what API clients see.
type JSONRenderer struct{}

func (JSONRenderer) Render(w http.ResponseWriter, status int, view string, data ViewData) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		View string `json:"view"`
		ViewData
	}{view, data})
}

// TemplateRenderer executes "<view>.html" from a template set.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses every file matching pattern in fsys.
func NewTemplateRenderer(fsys fs.FS, pattern string) (*TemplateRenderer, error) {
	t, err := template.ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

func (t *TemplateRenderer) Render(w http.ResponseWriter, status int, view string, data ViewData) {
	// render into a buffer so a template error can still become a clean 500
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, view+".html", data); err != nil {
		slog.Error("error rendering view", "view", view, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// writeJSONError writes the {"error": true, "message": ...} body.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   true,
		"message": message,
	})
}

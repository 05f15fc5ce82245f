// Package views holds the default HTML templates for the auth pages.
package views

import "embed"

//go:embed *.html
var FS embed.FS

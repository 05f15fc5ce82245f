//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore UserDirectory. Users are
// stored under kind "User" keyed by email, and creation runs in a
// transaction so the key cannot be claimed twice.
//
// # Namespacing
//
// Pass a namespace to isolate tenants sharing one project:
//
//	userStore := gae.NewUserStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "")  // default namespace
package gae

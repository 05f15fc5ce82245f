//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based UserDirectory. It works with any
// dialector whose driver reports duplicate keys; enable TranslateError in
// the gorm.Config so they surface as gorm.ErrDuplicatedKey.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	gormstore.AutoMigrate(db)
//	users := gormstore.NewUserStore(db)
package gorm

//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the
// authbase.UserStore. It supports any database that GORM supports
// (PostgreSQL, MySQL, SQLite, etc.) and is the store to use when
// several processes share the accounts table.
//
// # Database Schema
//
// The package auto-migrates a single "users" table with a unique index
// on the normalized email and an index on the reset-token hash.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	userStore := gormstore.NewUserStore(db)
package gorm

//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// authbase.UserStore. It is designed for deployment on Google Cloud
// Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - User: user accounts, keyed by user ID
//   - EmailIndex: email uniqueness index, keyed by normalized email
//   - ResetIndex: pending password resets, keyed by token hash
//
// The index kinds exist because Datastore has no unique constraints:
// creating the index entity in the same transaction as the user is what
// enforces one-account-per-email, and getting the reset index by key is
// strongly consistent where a property query would not be.
//
// # Namespacing
//
// Pass a namespace when creating the store to isolate data between
// tenants:
//
//	userStore := gae.NewUserStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "") // default namespace
package gae

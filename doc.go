// Package authcore is the credential and session security core for the
// storefront backend: registration with verification codes, password login
// with lockout, TOTP second factor with backup codes, revocable bearer
// tokens, Redis-backed idle sessions, CSRF double-submit tokens, and a
// federated-login exchange bridge.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, AuthResult, SecondFactorProvision, etc.).
// Session encoding, audit dispatch, and artifact generation live under
// internal/ or in sub-packages and are never re-exported.
//
// # What this package must NOT do
//
//   - Own account persistence. Accounts live behind [AccountProvider];
//     field-level encryption of second-factor secrets is applied at that
//     repository boundary, never here.
//   - Return password hashes, second-factor secrets, or previously issued
//     backup codes from any Engine method.
//   - Distinguish "unknown identity" from "wrong password" in anything an
//     anonymous caller can observe.
package authcore

// Package middleware exposes HTTP middleware adapters for access
// validation and anti-forgery enforcement built on top of
// authcore.Engine.
//
// # Guards
//
//   - [Guard]: bearer token + session validation on every request.
//   - [CSRF]: double-submit anti-forgery check on state-changing
//     methods.
//
// Guard reads the Authorization header, calls Engine.ValidateAccess,
// and injects the validated result into the request context. CSRF
// compares the X-CSRF-Token header against the session-bound token.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated
// to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create bearer tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from
//     Engine.ValidateAccess.
package middleware

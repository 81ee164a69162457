// Package jwt is the token codec: it issues and verifies compact signed tokens
// (three base64url segments) carrying a subject, an optional scope, a use
// marker, and iat/exp timestamps.
//
// Signature integrity is always checked. Expiry is enforced by [Manager.Validate]
// and deliberately skipped by [Manager.ParseIgnoringExpiry], so callers choose the
// entry point that matches their policy.
//
// # What this package must NOT do
//
//   - Persist tokens or touch any store.
//   - Import the root deepblue package.
package jwt

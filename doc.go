// Package deepblue issues, verifies and renews the bearer tokens that gate
// the deepblue API.
//
// A login exchanges credentials for a [TokenPair]: a short-lived access
// token carrying the subject and scope, and a longer-lived refresh token
// carrying only the subject. The refresh half is saved in a [RefreshStore];
// presence in the store is what makes it redeemable. The HTTP filter in
// the middleware package rebuilds a [Principal] from the access token on
// every request.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Renewal
//
// [Engine.Renew] checks the store first, then the signature, then the
// subject, and reports a [RejectReason] for the first gate that fails.
// By default the presented refresh token stays valid and only a new access
// token is issued; RefreshConfig.RotateRefreshToken replaces it instead.
//
// # What this package must NOT do
//
//   - Persist access tokens or Principals.
//   - Store refresh tokens in plaintext (stores keep a SHA-256 digest).
//   - Import any sub-package that re-imports deepblue (no import cycles).
package deepblue

// Package middleware exposes the HTTP adapters around deepblue.Engine.
//
// # Adapters
//
//   - [Authenticate] runs once per request, attaches a Principal for a valid
//     access token, and always calls the next handler.
//   - [RequirePrincipal] rejects requests that reached it without one.
//
// [BearerToken] is the header parser both use; other transports may reuse it.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Engine).
//   - Distinguish failure reasons to the client. Every failure is anonymous.
package middleware

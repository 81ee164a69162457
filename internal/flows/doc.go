// Package flows contains the orchestrators behind each Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRefresh, RunLogout) accepts a
// typed dependency struct and returns a result carrying either the output or
// a classified failure. The root package maps failure kinds onto its public
// errors and reject reasons.
//
// # Architecture boundaries
//
// Flows coordinate the token codec, the refresh store and the credential
// verifier. They do NOT own any of these; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root deepblue package (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency structs.
package flows

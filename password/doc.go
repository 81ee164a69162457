// Package password hashes and verifies member passwords.
//
// # Formats
//
// [Argon2] produces PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] produces the standard $2a$/$2b$ modular crypt strings.
//
// [Delegating] prefixes every stored hash with the identifier of the hasher
// that produced it, for example "{argon2}$argon2id$...". Verification picks
// the hasher from the prefix, so stored hashes survive a change of default.
// [Delegating.NeedsUpgrade] reports true for hashes written by a non-default
// hasher or with weaker parameters, letting callers re-hash on login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy such as minimum length.
//   - Log plaintext passwords.
package password

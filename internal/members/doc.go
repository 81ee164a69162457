// Package members is the SQL-backed member directory. Repository verifies
// login credentials for the engine and re-resolves a member's scope when a
// token is renewed.
package members

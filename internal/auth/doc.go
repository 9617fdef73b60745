// Package auth provides dashboard authentication for Lumen.
//
// Accounts are keyed by email address with Argon2id password hashing
// (PHC string storage) and stateless HS256 JWT access tokens. There is
// a single authorisation tier: any authenticated account can view and
// operate the household's devices.
package auth

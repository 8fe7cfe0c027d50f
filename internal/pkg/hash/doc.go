// Package hash provides helpers for hashing and verifying secrets.
//
// Bcrypt is used for password hashes. HMACSHA256 is used where a stable,
// non-reversible key is needed, such as deriving cache keys from email
// addresses and phone numbers without storing them in clear text.
package hash

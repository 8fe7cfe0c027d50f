// Package jwt issues and verifies signed session tokens.
//
// A token carries the registered claims plus exactly one principal claim:
//   - userId for a registered end user,
//   - identifier for a verified but not yet registered end user,
//   - adminId for an administrator.
//
// Tokens with no principal claim, or with more than one, are rejected as
// malformed. Context helpers store verified claims for downstream handlers.
package jwt

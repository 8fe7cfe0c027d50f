// Package validator checks request structs against their `validate` tags.
//
// Besides the stock go-playground rules it registers "password" (8 to 72
// characters, the bcrypt input limit) and "otpcode" (exactly six digits).
// Failures come back as V10ValidationError, whose Values map snake_case field
// names to English messages ready for the HTTP error body.
package validator

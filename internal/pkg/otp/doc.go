// Package otp generates one-time numeric codes.
//
// Codes are drawn uniformly from the full range of the configured number of
// digits using crypto/rand, then left-padded with zeros so "000042" is as
// likely as "482913". Callers store the code alongside an expiry and compare
// it in constant time on verification.
package otp

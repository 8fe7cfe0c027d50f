// Package crypter seals short secrets at rest with AES-256-GCM.
//
// Every ciphertext is bound to a Scope through the GCM additional data, so a
// value sealed for one identifier or purpose cannot be opened under another.
package crypter

// Purpose names what a sealed value is used for.
type Purpose string

// PurposeOTPCode scopes sealing to one-time verification codes.
const PurposeOTPCode Purpose = "otp_code"

// Scope binds a ciphertext to its owner and purpose.
type Scope struct {
	// Subject is the owner of the value, e.g. an email address or phone number.
	Subject string
	// Purpose is the usage of the value.
	Purpose Purpose
}

// Crypter seals and opens values for a scope.
type Crypter interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

// KeyProvider returns the raw AES-256 key for a scope.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}

// StaticKey returns the same key for every scope.
type StaticKey []byte

// Key returns a copy of the static key.
func (k StaticKey) Key(_ Scope) ([]byte, error) {
	if len(k) == 0 {
		return nil, ErrMissingKey
	}

	out := make([]byte, len(k))
	copy(out, k)
	return out, nil
}

package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes passwords with bcrypt after keying them with the pepper.
//
// The password is first run through HMAC-SHA256 keyed by the pepper and the
// base64 digest is what bcrypt sees, so passwords of any length stay under
// bcrypt's 72 byte input limit.
type Bcrypt struct {
	cost   int
	pepper []byte
}

// NewBcrypt falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost, pepper: []byte(pepper)}
}

func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(h.peppered(plaintext), h.cost)
}

func (h *Bcrypt) Verify(hashed, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), h.peppered(plaintext)) == nil
}

func (h *Bcrypt) peppered(plaintext string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(plaintext))

	return []byte(base64.RawStdEncoding.EncodeToString(mac.Sum(nil)))
}

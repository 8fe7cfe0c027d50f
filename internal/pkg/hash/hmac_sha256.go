package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 derives stable lowercase-hex digests. Redis keys for login
// sessions are built from it so identifiers never appear in key names.
type HMACSHA256 struct {
	secret []byte
}

func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

// Hash never fails.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	sum := s.sum(str)
	return hex.AppendEncode(nil, sum), nil
}

// Verify decodes hashed and compares digests in constant time. Malformed hex
// never matches.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	want, err := hex.DecodeString(hashed)
	if err != nil {
		return false
	}

	return hmac.Equal(want, s.sum(str))
}

func (s *HMACSHA256) sum(str string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(str))
	return mac.Sum(nil)
}

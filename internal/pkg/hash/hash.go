package hash

// Hash hashes secrets and verifies plaintext against a stored hash.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

var (
	_ Hash = (*Bcrypt)(nil)
	_ Hash = (*HMACSHA256)(nil)
)

// Package hash holds the secret hashers: bcrypt and argon2id for passwords,
// HMAC-SHA256 for one-time codes. Callers pick an implementation at startup
// and depend only on the Hash interface.
package hash

// Hash produces storable hash bytes and verifies plaintext against them.
// Implementations compare in constant time.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}

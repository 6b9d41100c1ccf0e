package app

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Credentials hashes and verifies secrets with bcrypt.
type Credentials struct {
	Cost int
}

// NewCredentials returns Credentials using cost, falling back to
// bcrypt.DefaultCost when cost is out of range.
func NewCredentials(cost int) Credentials {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Credentials{Cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (c Credentials) Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), c.Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether secret matches hash. The comparison runs in
// constant time.
func (c Credentials) Verify(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomCode returns n characters drawn uniformly from codeAlphabet.
func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}

package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a password with bcrypt at the configured cost. A
// cost outside bcrypt's supported range falls back to the library
// default rather than failing registration on a misconfigured deploy.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// The comparison cost is taken from the hash itself, so existing hashes
// keep verifying after the configured cost changes.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

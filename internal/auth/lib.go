package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted one-way bcrypt hash of the plaintext.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a candidate plaintext against a stored hash.
// bcrypt's comparison is constant-time over the derived key.
func CheckPasswordHash(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

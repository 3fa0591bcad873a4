package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest admin password accepted.
const MinPasswordLength = 8

// ErrWeakPassword is returned for passwords bcrypt cannot or should not hash.
var ErrWeakPassword = errors.New("password must be between 8 and 72 bytes")

// HashPassword returns a bcrypt hash of the admin password.
func HashPassword(password string) (string, error) {
	// bcrypt ignores everything past 72 bytes
	if len(password) < MinPasswordLength || len(password) > 72 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

package auth

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

// ErrPasswordMismatch indicates the supplied password does not match the hash.
var ErrPasswordMismatch = errors.New("auth: password mismatch")

// HashPassword derives an argon2id hash of the password.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}

// VerifyPassword checks the password against a stored argon2id hash.
func VerifyPassword(password, hash string) error {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return err
	}
	if !match {
		return ErrPasswordMismatch
	}
	return nil
}

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

// dummyHash is compared against when a login names an unknown account so
// both failure paths spend the same bcrypt work.
var dummyHash = mustHash("bugsage-dummy-password")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. An empty hash is
// checked against a dummy value and never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func mustHash(password string) []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		panic(errors.Join(errors.New("auth: dummy hash"), err))
	}
	return hash
}

package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost used for new password hashes.
const BcryptCost = bcrypt.DefaultCost

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPasscode returns a bcrypt hash of passcode. cost <= 0 uses bcrypt.DefaultCost.
func HashPasscode(passcode string, cost int) (string, error) {
	if passcode == "" {
		return "", errors.New("passcode must not be empty")
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), cost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(hashed), nil
}

// CheckPasscode compares passcode with a bcrypt hash. A mismatch, or an
// empty hash, is ErrInvalidCredentials.
func CheckPasscode(hash, passcode string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("check passcode: %w", err)
	}
	return nil
}

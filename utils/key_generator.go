package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOtpCode returns a 6-digit numeric passcode. Each digit is drawn
// independently, so codes may collide across accounts; the email key keeps
// them apart.
func GenerateOtpCode() (string, error) {
	const digits = 6

	code := make([]byte, digits)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to draw otp digit: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}

	return string(code), nil
}

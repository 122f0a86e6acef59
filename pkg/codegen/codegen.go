package codegen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// VerificationAlphabet excludes visually confusable glyphs (0/O, 1/I/L, 8/B)
// so a code read over the phone or typed from a receipt survives the trip.
const VerificationAlphabet = "23456789ACDEFGHJKMNPQRSTUVWXYZ"

const verificationCodeLength = 6

// NewUniqueID generates the opaque external-facing token for a code record.
func NewUniqueID() string {
	return uuid.New().String()
}

// NewVerificationCode generates a 6-character human-readable fallback code.
func NewVerificationCode() (string, error) {
	b := make([]byte, verificationCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	out := make([]byte, verificationCodeLength)
	for i, v := range b {
		out[i] = VerificationAlphabet[int(v)%len(VerificationAlphabet)]
	}
	return string(out), nil
}

package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const secretBytes = 32

// GenerateSecret returns a 256-bit random token, hex encoded.
func GenerateSecret() (string, error) {
	bytes := make([]byte, secretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SignDeskID derives the scanner join signature from the session secret.
// The QR code shown on the desk carries (deskId, signature) so the raw
// secret never leaves the desk.
func SignDeskID(secret, deskID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(deskID))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

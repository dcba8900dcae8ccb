package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	letterBytes  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberBytes  = "0123456789"
	alphanumeric = letterBytes + numberBytes
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

func GenerateConnectionID() string {
	return uuid.NewString()
}

func GenerateEmergencyID() string {
	return "em_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PlaceholderName derives a display name from the session identifier, e.g.
// "Runner-3F9A1C" or "Staff-3F9A1C".
func PlaceholderName(prefix, sessionID string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(sessionID, "-", ""))
	if len(suffix) > PlaceholderSuffixLength {
		suffix = suffix[:PlaceholderSuffixLength]
	}
	if suffix == "" {
		suffix = strings.ToUpper(GenerateRandomString(PlaceholderSuffixLength))
	}
	return prefix + "-" + suffix
}

package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// KeyPrefix marks keys issued by this service.
const KeyPrefix = "ct_live_"

// GenerateAPIKey creates a new key and its SHA256 hash.
// The raw key is shown to the caller once; only the hash is stored.
func GenerateAPIKey() (string, string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	realKey := KeyPrefix + hex.EncodeToString(bytes)

	hash := sha256.Sum256([]byte(realKey))
	keyHash := hex.EncodeToString(hash[:])

	return realKey, keyHash, nil
}

// HashKey hashes a raw key the way GenerateAPIKey does, for lookups.
func HashKey(providedKey string) string {
	hash := sha256.Sum256([]byte(providedKey))
	return hex.EncodeToString(hash[:])
}

// ValidateKey checks a provided key against a stored hash in constant time.
func ValidateKey(providedKey, storedHash string) bool {
	computed := HashKey(providedKey)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

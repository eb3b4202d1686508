package security

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		t.Errorf("key missing prefix: %q", key)
	}
	if len(hash) != 64 {
		t.Errorf("hash should be 64 hex chars, got %d", len(hash))
	}

	if !ValidateKey(key, hash) {
		t.Error("generated key should validate against its own hash")
	}
	if ValidateKey(key+"x", hash) {
		t.Error("tampered key should not validate")
	}

	key2, hash2, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if key == key2 || hash == hash2 {
		t.Error("two generated keys should differ")
	}
}

func TestHashKeyMatchesValidate(t *testing.T) {
	key := "ct_live_deadbeef"
	if !ValidateKey(key, HashKey(key)) {
		t.Error("HashKey and ValidateKey disagree")
	}
}

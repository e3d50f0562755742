package crypto

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestSealOpenRoundTrip tests the payload envelope with a real cipher.
func TestSealOpenRoundTrip(t *testing.T) {
	cipher, err := NewAESCipher("passphrase")
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}

	plain := json.RawMessage(`{"food_name":"oatmeal","calories":150}`)
	sealed, err := SealPayload(cipher, plain)
	if err != nil {
		t.Fatalf("SealPayload() error = %v", err)
	}

	// The sealed form must itself be valid JSON.
	var s string
	if err := json.Unmarshal(sealed, &s); err != nil {
		t.Fatalf("Sealed payload is not a JSON string: %v", err)
	}

	opened, err := OpenPayload(cipher, sealed)
	if err != nil {
		t.Fatalf("OpenPayload() error = %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("Round trip mismatch: %s", opened)
	}
}

// TestOpenPlaintextPassthrough tests that non-string payloads from
// unencrypted backends pass through untouched.
func TestOpenPlaintextPassthrough(t *testing.T) {
	cipher, _ := NewAESCipher("passphrase")

	plain := json.RawMessage(`{"food_name":"oatmeal"}`)
	opened, err := OpenPayload(cipher, plain)
	if err != nil {
		t.Fatalf("OpenPayload() error = %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("Passthrough mangled payload: %s", opened)
	}
}

// TestOpenWrongKey tests that a sealed payload refuses to open under
// another key.
func TestOpenWrongKey(t *testing.T) {
	a, _ := NewAESCipher("key-a")
	b, _ := NewAESCipher("key-b")

	sealed, err := SealPayload(a, json.RawMessage(`{"food_name":"oatmeal"}`))
	if err != nil {
		t.Fatalf("SealPayload() error = %v", err)
	}

	if _, err := OpenPayload(b, sealed); err == nil {
		t.Error("Expected decryption failure under the wrong key")
	}
}

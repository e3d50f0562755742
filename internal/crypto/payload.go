package crypto

import (
	"encoding/base64"
	"encoding/json"
)

// SealPayload encrypts a payload and wraps the ciphertext as a JSON
// string so it can travel inside JSON documents.
func SealPayload(c Cipher, plain json.RawMessage) (json.RawMessage, error) {
	ct, err := c.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(ct))
}

// OpenPayload reverses SealPayload. A payload that is not a JSON
// string is passed through untouched, which covers backends that
// store payloads in the clear.
func OpenPayload(c Cipher, sealed json.RawMessage) (json.RawMessage, error) {
	var encoded string
	if err := json.Unmarshal(sealed, &encoded); err != nil {
		return sealed, nil
	}
	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sealed, nil
	}
	plain, err := c.Decrypt(ct)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

package passkey

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Credential is one registered authenticator for an identity. An identity may
// hold several (multi-device). Counter is the authenticator signature counter
// reported at the last successful verification; it only ever moves forward.
type Credential struct {
	ID         []byte   `json:"id"`
	PublicKey  []byte   `json:"publicKey"`
	Counter    uint32   `json:"counter"`
	Transports []string `json:"transports"`
}

// EncodedID returns the base64url form of the credential id, the encoding
// authenticator assertions use on the wire.
func (c Credential) EncodedID() string {
	return base64.RawURLEncoding.EncodeToString(c.ID)
}

// Matches reports whether this credential is the one an assertion referenced.
func (c Credential) Matches(encodedID string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return false
	}
	return bytes.Equal(c.ID, raw)
}

func encodeCredentials(creds []Credential) (string, error) {
	data, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	return string(data), nil
}

func decodeCredentials(data string) ([]Credential, error) {
	var creds []Credential
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

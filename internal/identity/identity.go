// Package identity derives the stable keys under which all per-user state is
// stored. The derivation is one-way: given only a stored identity there is no
// path back to the phone number.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// FromPhone maps a raw contact identifier (phone number) to the identity key
// used across the challenge, credential, session and wallet stores. Must stay
// stable forever: every stored record is keyed by this value.
func FromPhone(phoneNumber string) string {
	sum := sha256.Sum256([]byte(phoneNumber))
	return hex.EncodeToString(sum[:])
}

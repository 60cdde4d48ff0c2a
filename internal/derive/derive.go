// Package derive holds the two deterministic derivations the wallet depends
// on. Both are pure functions of their inputs and must stay bit-exact across
// releases: the PIN feeds the signing-key derivation, and the signing key is
// never persisted anywhere, so any drift in either function silently moves
// users onto different wallet addresses with no recovery path.
package derive

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const pinLength = 8

// PIN derives the fixed-length numeric PIN for a registered credential. The
// same (credentialID, publicKey) pair always yields the same PIN. The
// credential id is the base64url form reported by the verifier; the public
// key is hex-encoded before hashing.
func PIN(credentialID string, publicKey []byte) string {
	sum := sha256.Sum256([]byte(credentialID + hex.EncodeToString(publicKey)))
	digits := new(big.Int).SetBytes(sum[:]).String()
	if len(digits) >= pinLength {
		return digits[:pinLength]
	}
	return strings.Repeat("0", pinLength-len(digits)) + digits
}

// SigningKey computes the wallet signing key for an identity. The key
// material is keccak256(salt|phoneNumber|pin); all three inputs are
// load-bearing and irreplaceable. Changing the server salt, or deriving with
// a different PIN for the same user, produces a different address and
// strands any funds held by the old one.
func SigningKey(salt, phoneNumber, pin string) (*ecdsa.PrivateKey, error) {
	material := ethcrypto.Keccak256([]byte(salt + "|" + phoneNumber + "|" + pin))
	key, err := ethcrypto.ToECDSA(material)
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// Address returns the EOA address controlled by the derived signing key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

package wallet

import "time"

const typeSmartAccount = "smart-account"

// Wallet is the stored metadata for an identity's smart account. The account
// itself lives on chain; this record only caches the address and usage
// bookkeeping.
type Wallet struct {
	Address   string    `json:"address"`
	Type      string    `json:"type"`
	ChainID   int64     `json:"chainId"`
	CreatedAt time.Time `json:"createdAt"`
	Metadata  Metadata  `json:"metadata"`
}

// Metadata tracks which passkey provisioned the wallet and how it is used.
type Metadata struct {
	CredentialID     string    `json:"passkeyCredentialId"`
	LastUsed         time.Time `json:"lastUsed"`
	TransactionCount int       `json:"transactionCount"`
}

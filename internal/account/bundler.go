package account

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	bundlerTimeout = 10 * time.Second
	receiptPoll    = 2 * time.Second
)

// BundlerClient implements Service against an external account-abstraction
// bundler service over JSON/HTTP. The owner key never leaves the process:
// send requests carry a signature over the transaction payload, not the key.
type BundlerClient struct {
	baseURL string
	client  *http.Client
}

// NewBundlerClient builds a bundler-backed account service.
func NewBundlerClient(baseURL string) *BundlerClient {
	return &BundlerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: bundlerTimeout},
	}
}

// GetAccountAddress resolves the smart account for an owner address.
func (b *BundlerClient) GetAccountAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	var out struct {
		Address common.Address `json:"address"`
	}
	err := b.post(ctx, "/account/address", map[string]any{"owner": owner}, &out)
	return out.Address, err
}

// GetBalance returns the native balance in wei.
func (b *BundlerClient) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out struct {
		Balance *hexBig `json:"balance"`
	}
	if err := b.post(ctx, "/account/balance", map[string]any{"address": addr}, &out); err != nil {
		return nil, err
	}
	return out.Balance.Int(), nil
}

// GetTokenBalance returns a token balance in the token's smallest unit.
func (b *BundlerClient) GetTokenBalance(ctx context.Context, addr common.Address, symbol string) (*big.Int, error) {
	var out struct {
		Balance *hexBig `json:"balance"`
	}
	err := b.post(ctx, "/account/token-balance", map[string]any{"address": addr, "symbol": symbol}, &out)
	if err != nil {
		return nil, err
	}
	return out.Balance.Int(), nil
}

// EstimateGas quotes user-operation gas for the transaction.
func (b *BundlerClient) EstimateGas(ctx context.Context, owner common.Address, tx Transaction) (GasEstimate, error) {
	var out struct {
		CallGasLimit         *hexBig `json:"callGasLimit"`
		VerificationGasLimit *hexBig `json:"verificationGasLimit"`
		PreVerificationGas   *hexBig `json:"preVerificationGas"`
		MaxFeePerGas         *hexBig `json:"maxFeePerGas"`
	}
	err := b.post(ctx, "/userop/estimate", map[string]any{
		"owner": owner,
		"to":    tx.To,
		"value": (*hexBig)(tx.Value),
		"data":  hex.EncodeToString(tx.Data),
	}, &out)
	if err != nil {
		return GasEstimate{}, err
	}
	return GasEstimate{
		CallGasLimit:         out.CallGasLimit.Int(),
		VerificationGasLimit: out.VerificationGasLimit.Int(),
		PreVerificationGas:   out.PreVerificationGas.Int(),
		MaxFeePerGas:         out.MaxFeePerGas.Int(),
	}, nil
}

// SendTransaction signs the transaction payload with the owner key and
// submits it through the bundler.
func (b *BundlerClient) SendTransaction(ctx context.Context, owner *ecdsa.PrivateKey, tx Transaction) (string, error) {
	payload := ethcrypto.Keccak256(
		tx.To.Bytes(),
		tx.Value.Bytes(),
		tx.Data,
	)
	sig, err := ethcrypto.Sign(payload, owner)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	var out struct {
		TxHash string `json:"txHash"`
	}
	err = b.post(ctx, "/userop/send", map[string]any{
		"owner":     ethcrypto.PubkeyToAddress(owner.PublicKey),
		"to":        tx.To,
		"value":     (*hexBig)(tx.Value),
		"data":      hex.EncodeToString(tx.Data),
		"signature": hex.EncodeToString(sig),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.TxHash, nil
}

// WaitForReceipt polls until the transaction is mined or ctx expires.
func (b *BundlerClient) WaitForReceipt(ctx context.Context, txHash string) (Receipt, error) {
	for {
		receipt, found, err := b.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			return Receipt{}, err
		}
		if found {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-time.After(receiptPoll):
		}
	}
}

// GetTransactionReceipt fetches the receipt if mined.
func (b *BundlerClient) GetTransactionReceipt(ctx context.Context, txHash string) (Receipt, bool, error) {
	var out struct {
		Found   bool    `json:"found"`
		Receipt Receipt `json:"receipt"`
	}
	if err := b.post(ctx, "/userop/receipt", map[string]any{"txHash": txHash}, &out); err != nil {
		return Receipt{}, false, err
	}
	return out.Receipt, out.Found, nil
}

func (b *BundlerClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode bundler request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, bundlerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build bundler request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("call bundler %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bundler %s returned %d: %s", path, resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bundler response: %w", err)
	}
	return nil
}

// hexBig marshals big.Int values as 0x-prefixed hex on the bundler wire.
type hexBig big.Int

func (h *hexBig) Int() *big.Int {
	if h == nil {
		return big.NewInt(0)
	}
	return (*big.Int)(h)
}

func (h *hexBig) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte(`"0x0"`), nil
	}
	return []byte(fmt.Sprintf("%q", "0x"+(*big.Int)(h).Text(16))), nil
}

func (h *hexBig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return fmt.Errorf("invalid hex quantity %q", s)
	}
	*h = hexBig(*v)
	return nil
}

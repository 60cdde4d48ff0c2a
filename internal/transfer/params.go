package transfer

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// MaxTransferEther is the hard safety cap on a single transfer, in native
// units. Not configurable per user.
const MaxTransferEther = 10

var (
	// ErrInvalidRecipient indicates the recipient is not a valid address.
	ErrInvalidRecipient = errors.New("invalid recipient address")

	// ErrInvalidAmount indicates the amount is not a positive finite number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountTooLarge indicates the amount exceeds the transfer ceiling.
	ErrAmountTooLarge = errors.New("amount exceeds transfer ceiling")
)

// Params are the extracted inputs of a transfer command.
type Params struct {
	Amount    string
	Recipient string
}

// The three literal phrasings users actually type. Address is exactly 0x +
// 40 hex characters, case-insensitive.
var transferPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)send\s+([\d.]+)\s+eth\s+to\s+(0x[a-f0-9]{40})`),
	regexp.MustCompile(`(?i)transfer\s+([\d.]+)\s+eth\s+(0x[a-f0-9]{40})`),
	regexp.MustCompile(`(?i)send\s+eth\s+([\d.]+)\s+to\s+(0x[a-f0-9]{40})`),
}

// ParseCommand extracts transfer parameters from free text. Returns false if
// the message matches none of the supported phrasings.
func ParseCommand(message string) (Params, bool) {
	for _, pattern := range transferPatterns {
		if m := pattern.FindStringSubmatch(message); m != nil {
			return Params{Amount: m[1], Recipient: m[2]}, true
		}
	}
	return Params{}, false
}

// ValidateParams rejects malformed recipients, non-positive or non-finite
// amounts, and amounts over the ceiling.
func ValidateParams(p Params) error {
	if !common.IsHexAddress(p.Recipient) {
		return ErrInvalidRecipient
	}
	amount, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxTransferEther {
		return ErrAmountTooLarge
	}
	return nil
}

// parseEther converts a decimal ether string to wei.
func parseEther(amount string) (*big.Int, error) {
	value, ok := new(big.Float).SetPrec(236).SetString(amount)
	if !ok {
		return nil, ErrInvalidAmount
	}
	wei, _ := new(big.Float).Mul(value, big.NewFloat(1e18)).Int(nil)
	if wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return wei, nil
}

// formatEther renders a wei amount as a decimal ether string for replies.
func formatEther(wei *big.Int) string {
	value := new(big.Float).SetPrec(236).SetInt(wei)
	value.Quo(value, big.NewFloat(1e18))
	return fmt.Sprintf("%.6f", value)
}

package chat

import (
	"regexp"
	"strings"
)

// Control commands short-circuit before the wallet gate.
type Control int

const (
	ControlNone Control = iota
	ControlAuth
	ControlLogout
	ControlReset
)

// Kind tags a parsed wallet command. Adding a command means adding a Kind
// and a case in the dispatcher switch; there is no stringly-keyed table.
type Kind int

const (
	KindUnknown Kind = iota
	KindBalance
	KindAddress
	KindInfo
	KindSend
	KindSwap
	KindStatus
)

// Command is the parsed form of one inbound message. Only the fields for
// its Kind are populated.
type Command struct {
	Kind      Kind
	Amount    string
	Token     string
	Recipient string
	FromToken string
	ToToken   string
	TxHash    string
}

// The fixed phrase list a message may match to count as a wallet command.
var walletPhrases = []string{
	"connect wallet",
	"get balance",
	"get my balance",
	"check balance",
	"send tokens",
	"send eth",
	"send usdc",
	"send usdt",
	"swap tokens",
	"swap usdc usdt",
	"swap usdt usdc",
	"get wallet address",
	"wallet info",
	"transfer",
	"deposit",
	"withdraw",
	"buy crypto",
	"sell crypto",
}

var (
	sendGatePattern = regexp.MustCompile(`(?i)send\s+[\d.]+\s+(eth|usdc|usdt)`)
	swapGatePattern = regexp.MustCompile(`(?i)swap\s+[\d.]+\s+(usdc|usdt)\s+(for|to)\s+(usdc|usdt|eth)`)

	// Regexes are authoritative for parameter extraction; the phrase list
	// only decides whether the wallet gate applies.
	sendPattern   = regexp.MustCompile(`(?i)send\s+([\d.]+)\s+(eth|usdc|usdt)(?:\s+to)?\s+(0x[a-f0-9]{40})`)
	swapPattern   = regexp.MustCompile(`(?i)swap\s+([\d.]+)\s+(usdc|usdt|eth)\s+(?:for|to)\s+(usdc|usdt|eth)`)
	statusPattern = regexp.MustCompile(`(?i)status\s+(0x[a-f0-9]{64})`)
)

// ClassifyControl detects auth/logout/reset requests by keyword. These
// bypass command parsing and the wallet gate entirely.
func ClassifyControl(message string) Control {
	text := strings.ToLower(strings.TrimSpace(message))
	switch {
	case strings.Contains(text, "/auth") || strings.Contains(text, "authenticate"):
		return ControlAuth
	case strings.Contains(text, "/logout") || strings.Contains(text, "logout"):
		return ControlLogout
	case strings.Contains(text, "/reset") || strings.Contains(text, "start over"):
		return ControlReset
	default:
		return ControlNone
	}
}

// IsWalletCommand reports whether the message must pass the authentication
// gate: any fixed phrase, or a structured send/swap, or a status query.
func IsWalletCommand(message string) bool {
	text := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range walletPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return sendGatePattern.MatchString(text) ||
		swapGatePattern.MatchString(text) ||
		statusPattern.MatchString(text)
}

// Parse classifies a message into a Command. First match wins; structured
// send/swap/status patterns are tried before the plain substring fallbacks
// since they carry parameters.
func Parse(message string) Command {
	text := strings.ToLower(strings.TrimSpace(message))

	if m := sendPattern.FindStringSubmatch(text); m != nil {
		return Command{
			Kind:      KindSend,
			Amount:    m[1],
			Token:     strings.ToUpper(m[2]),
			Recipient: m[3],
		}
	}
	if m := swapPattern.FindStringSubmatch(text); m != nil {
		return Command{
			Kind:      KindSwap,
			Amount:    m[1],
			FromToken: strings.ToUpper(m[2]),
			ToToken:   strings.ToUpper(m[3]),
		}
	}
	if m := statusPattern.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindStatus, TxHash: m[1]}
	}

	switch {
	case strings.Contains(text, "balance"):
		return Command{Kind: KindBalance}
	case strings.Contains(text, "wallet address"):
		return Command{Kind: KindAddress}
	case strings.Contains(text, "wallet info"):
		return Command{Kind: KindInfo}
	}
	return Command{Kind: KindUnknown}
}

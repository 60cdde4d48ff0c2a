package chat

import (
	"strings"
	"testing"
)

func TestClassifyControl(t *testing.T) {
	cases := []struct {
		message string
		want    Control
	}{
		{"/auth", ControlAuth},
		{"please authenticate me", ControlAuth},
		{"/logout", ControlLogout},
		{"logout now", ControlLogout},
		{"/reset", ControlReset},
		{"let's start over", ControlReset},
		{"get my balance", ControlNone},
		{"hello", ControlNone},
	}
	for _, tc := range cases {
		if got := ClassifyControl(tc.message); got != tc.want {
			t.Errorf("ClassifyControl(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestIsWalletCommand(t *testing.T) {
	gated := []string{
		"get my balance",
		"Check Balance",
		"connect wallet",
		"get wallet address",
		"wallet info please",
		"send 0.1 eth to 0x1111111111111111111111111111111111111111",
		"swap 100 usdc for eth",
		"status 0x" + strings.Repeat("ab", 32),
		"I want to transfer",
		"deposit",
	}
	for _, msg := range gated {
		if !IsWalletCommand(msg) {
			t.Errorf("IsWalletCommand(%q) = false, want true", msg)
		}
	}

	open := []string{
		"banana",
		"hello there",
		"what can you do",
		"send me a joke",
	}
	for _, msg := range open {
		if IsWalletCommand(msg) {
			t.Errorf("IsWalletCommand(%q) = true, want false", msg)
		}
	}
}

func TestParseSend(t *testing.T) {
	addr := "0x1111111111111111111111111111111111111111"

	cmd := Parse("send 0.1 eth to " + addr)
	if cmd.Kind != KindSend {
		t.Fatalf("expected KindSend, got %v", cmd.Kind)
	}
	if cmd.Amount != "0.1" || cmd.Token != "ETH" || cmd.Recipient != addr {
		t.Fatalf("unexpected send parameters: %+v", cmd)
	}

	// "to" is optional and token casing is normalized.
	cmd = Parse("Send 25 USDC " + addr)
	if cmd.Kind != KindSend || cmd.Amount != "25" || cmd.Token != "USDC" {
		t.Fatalf("unexpected send parameters: %+v", cmd)
	}
}

func TestParseSwap(t *testing.T) {
	cmd := Parse("swap 100 usdc for eth")
	if cmd.Kind != KindSwap {
		t.Fatalf("expected KindSwap, got %v", cmd.Kind)
	}
	if cmd.Amount != "100" || cmd.FromToken != "USDC" || cmd.ToToken != "ETH" {
		t.Fatalf("unexpected swap parameters: %+v", cmd)
	}

	cmd = Parse("swap 5 usdt to usdc")
	if cmd.Kind != KindSwap || cmd.FromToken != "USDT" || cmd.ToToken != "USDC" {
		t.Fatalf("unexpected swap parameters: %+v", cmd)
	}
}

func TestParseStatus(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	cmd := Parse("status " + hash)
	if cmd.Kind != KindStatus || cmd.TxHash != hash {
		t.Fatalf("unexpected status command: %+v", cmd)
	}

	// Too-short hashes fall through to unknown.
	if cmd := Parse("status 0xabcd"); cmd.Kind != KindUnknown {
		t.Fatalf("expected KindUnknown for short hash, got %v", cmd.Kind)
	}
}

func TestParseSubstringFallbacks(t *testing.T) {
	cases := []struct {
		message string
		want    Kind
	}{
		{"get my balance", KindBalance},
		{"what's my balance?", KindBalance},
		{"get wallet address", KindAddress},
		{"wallet info", KindInfo},
		{"banana", KindUnknown},
		{"send eth somewhere", KindUnknown},
	}
	for _, tc := range cases {
		if got := Parse(tc.message).Kind; got != tc.want {
			t.Errorf("Parse(%q).Kind = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestStructuredParseWinsOverFallback(t *testing.T) {
	// "balance" appears in the text but the structured send must win.
	addr := "0x2222222222222222222222222222222222222222"
	cmd := Parse("balance check then send 1 eth to " + addr)
	if cmd.Kind != KindSend || cmd.Recipient != addr {
		t.Fatalf("expected structured send to win, got %+v", cmd)
	}
}

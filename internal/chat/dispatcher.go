// Package chat turns free-text messages into wallet operations. Each inbound
// message is classified, gated on authentication state where required, and
// routed to exactly one handler; every failure becomes a reply string, never
// an error surfaced to the transport.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/identity"
	"github.com/chainchat/chainchat/internal/session"
	"github.com/chainchat/chainchat/internal/transfer"
	"github.com/chainchat/chainchat/internal/wallet"
)

const (
	replyLoggedOut    = "👋 Logged out successfully."
	replyReset        = "🔄 Session cleared. Send \"/auth\" to start over."
	replyWalletMissed = "❌ Wallet not found. Please re-authenticate to create your smart wallet."
	replyTechnical    = "I'm experiencing some technical difficulties. Please try again later."
	replySwapPending  = "⚠️ Swap execution is not available yet."
	replyOnlyETH      = "❌ Only ETH transfers are supported right now. Use format: \"send 0.1 ETH to 0x...\""

	helpText = "❓ Command not recognized. Available commands:\n\n" +
		"• \"get my balance\" - Check balances\n" +
		"• \"get wallet address\" - Show address\n" +
		"• \"wallet info\" - Wallet details\n" +
		"• \"send 0.1 ETH to 0x...\" - Send tokens\n" +
		"• \"swap 100 USDC for ETH\" - Swap tokens\n" +
		"• \"status 0x...\" - Check a transaction"

	authTip = "\n\n💡 Tip: Send \"/auth\" to connect your wallet for crypto operations."
)

// Dispatcher routes inbound chat turns.
type Dispatcher struct {
	sessions  *session.Store
	wallets   *wallet.Service
	transfers *transfer.Service
	accounts  account.Service
	baseURL   string
	logger    *slog.Logger
}

// NewDispatcher wires the command router.
func NewDispatcher(sessions *session.Store, wallets *wallet.Service, transfers *transfer.Service, accounts account.Service, baseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		wallets:   wallets,
		transfers: transfers,
		accounts:  accounts,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Process handles one chat turn and returns the reply text.
func (d *Dispatcher) Process(ctx context.Context, from, text string) string {
	identityID := identity.FromPhone(from)

	switch ClassifyControl(text) {
	case ControlAuth:
		return "🔐 Please authenticate to use wallet features:\n\n" + AuthLink(d.baseURL, from)
	case ControlLogout:
		if err := d.sessions.Delete(ctx, identityID); err != nil {
			d.logger.Warn("logout", "identity", identityID, "error", err)
		}
		return replyLoggedOut
	case ControlReset:
		if err := d.sessions.Delete(ctx, identityID); err != nil {
			d.logger.Warn("reset", "identity", identityID, "error", err)
		}
		return replyReset
	}

	if !IsWalletCommand(text) {
		reply := helpText
		if _, err := d.sessions.Get(ctx, identityID); errors.Is(err, session.ErrNotAuthenticated) {
			reply += authTip
		}
		return reply
	}

	sess, err := d.sessions.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return "🔐 Authentication required for wallet operations.\n\n" + AuthLink(d.baseURL, from)
		}
		d.logger.Error("session lookup", "identity", identityID, "error", err)
		return replyTechnical
	}
	if err := d.sessions.Refresh(ctx, identityID); err != nil {
		d.logger.Warn("session refresh", "identity", identityID, "error", err)
	}

	cmd := Parse(text)
	switch cmd.Kind {
	case KindBalance:
		return d.handleBalance(ctx, sess)
	case KindAddress:
		return d.handleAddress(ctx, sess)
	case KindInfo:
		return d.handleInfo(ctx, sess)
	case KindSend:
		return d.handleSend(ctx, sess, cmd, text)
	case KindSwap:
		return fmt.Sprintf("🔄 Swap prepared\n\nFrom: %s %s\nTo: %s\n\n%s",
			cmd.Amount, cmd.FromToken, cmd.ToToken, replySwapPending)
	case KindStatus:
		return d.handleStatus(ctx, cmd.TxHash)
	case KindUnknown:
		return helpText
	default:
		return helpText
	}
}

func (d *Dispatcher) handleBalance(ctx context.Context, sess session.Session) string {
	w, err := d.wallets.Get(ctx, sess.IdentityID)
	if err != nil {
		return d.walletError(sess.IdentityID, err)
	}

	addr := common.HexToAddress(w.Address)
	eth, err := d.accounts.GetBalance(ctx, addr)
	if err != nil {
		d.logger.Error("fetch balance", "identity", sess.IdentityID, "error", err)
		return replyTechnical
	}
	usdc, err := d.accounts.GetTokenBalance(ctx, addr, "USDC")
	if err != nil {
		d.logger.Error("fetch usdc balance", "identity", sess.IdentityID, "error", err)
		return replyTechnical
	}
	usdt, err := d.accounts.GetTokenBalance(ctx, addr, "USDT")
	if err != nil {
		d.logger.Error("fetch usdt balance", "identity", sess.IdentityID, "error", err)
		return replyTechnical
	}

	return fmt.Sprintf("💰 Your Wallet Balance\n\n"+
		"🔷 ETH: %s\n💵 USDC: %s\n💴 USDT: %s\n\n📍 Address: %s",
		formatEther(eth), formatStable(usdc), formatStable(usdt), w.Address)
}

func (d *Dispatcher) handleAddress(ctx context.Context, sess session.Session) string {
	w, err := d.wallets.Get(ctx, sess.IdentityID)
	if err != nil {
		return d.walletError(sess.IdentityID, err)
	}
	return fmt.Sprintf("📍 Your Smart Wallet Address\n\n%s\n\nNetwork chain ID: %d", w.Address, w.ChainID)
}

func (d *Dispatcher) handleInfo(ctx context.Context, sess session.Session) string {
	w, err := d.wallets.Get(ctx, sess.IdentityID)
	if err != nil {
		return d.walletError(sess.IdentityID, err)
	}
	return fmt.Sprintf("ℹ️ Wallet Information\n\n"+
		"📍 Address: %s\n🔗 Type: %s\n🌐 Chain ID: %d\n📅 Created: %s\n🔄 Last used: %s\n💳 Transactions: %d",
		w.Address, w.Type, w.ChainID,
		w.CreatedAt.Format("2006-01-02"),
		w.Metadata.LastUsed.Format("2006-01-02"),
		w.Metadata.TransactionCount)
}

func (d *Dispatcher) handleSend(ctx context.Context, sess session.Session, cmd Command, text string) string {
	if cmd.Token != "" && cmd.Token != "ETH" {
		return replyOnlyETH
	}

	params, ok := transfer.ParseCommand(text)
	if !ok {
		return "❌ Invalid send command. Use format: \"send 0.1 ETH to 0x...\""
	}

	result, err := d.transfers.Execute(ctx, sess.PhoneNumber, sess.PIN, params)
	if err != nil {
		var insufficient *transfer.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			return fmt.Sprintf("❌ Insufficient balance. You have %s ETH, trying to send %s ETH",
				formatEther(insufficient.Balance), params.Amount)
		case errors.Is(err, transfer.ErrInvalidRecipient):
			return "❌ Invalid recipient address. Please provide a valid Ethereum address."
		case errors.Is(err, transfer.ErrInvalidAmount):
			return "❌ Invalid amount. Please provide a positive number."
		case errors.Is(err, transfer.ErrAmountTooLarge):
			return fmt.Sprintf("❌ Amount too large. Maximum transfer is %d ETH for security.", transfer.MaxTransferEther)
		default:
			d.logger.Error("execute transfer", "identity", sess.IdentityID, "error", err)
			return replyTechnical
		}
	}

	if err := d.wallets.Touch(ctx, sess.IdentityID, true); err != nil {
		d.logger.Warn("record transaction", "identity", sess.IdentityID, "error", err)
	}

	if result.GasUsed == 0 {
		return fmt.Sprintf("⏳ Transfer submitted, awaiting confirmation.\n\n🔗 Transaction: %s\n\nSend \"status %s\" to check it.",
			result.TxHash, result.TxHash)
	}
	return fmt.Sprintf("✅ Transfer successful!\n\n💸 Sent: %s ETH\n📍 To: %s\n🔗 Transaction: %s\n⛽ Gas used: %d",
		params.Amount, params.Recipient, result.TxHash, result.GasUsed)
}

func (d *Dispatcher) handleStatus(ctx context.Context, txHash string) string {
	receipt, found, err := d.transfers.Status(ctx, txHash)
	if err != nil {
		d.logger.Error("transaction status", "txHash", txHash, "error", err)
		return "❌ Error checking transaction status."
	}
	if !found {
		return "⏳ Transaction pending..."
	}
	state := "✅ Confirmed"
	if receipt.Status != 1 {
		state = "❌ Failed"
	}
	return fmt.Sprintf("🔗 Transaction Status: %s\n📦 Block: %d\n⛽ Gas Used: %d", state, receipt.BlockNumber, receipt.GasUsed)
}

func (d *Dispatcher) walletError(identityID string, err error) string {
	if errors.Is(err, wallet.ErrNotFound) {
		return replyWalletMissed
	}
	d.logger.Error("wallet lookup", "identity", identityID, "error", err)
	return replyTechnical
}

// formatEther renders wei for replies.
func formatEther(wei *big.Int) string {
	value := new(big.Float).SetPrec(236).SetInt(wei)
	value.Quo(value, big.NewFloat(1e18))
	return fmt.Sprintf("%.6f", value)
}

// formatStable renders a 6-decimal stablecoin amount.
func formatStable(units *big.Int) string {
	value := new(big.Float).SetPrec(236).SetInt(units)
	value.Quo(value, big.NewFloat(1e6))
	return fmt.Sprintf("%.2f", value)
}

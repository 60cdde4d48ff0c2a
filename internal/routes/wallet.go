package routes

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/chainchat/chainchat/internal/account"
	"github.com/chainchat/chainchat/internal/middleware"
	"github.com/chainchat/chainchat/internal/transfer"
	"github.com/chainchat/chainchat/internal/wallet"
)

// RegisterWalletRoutes wires the session-gated wallet REST endpoints.
func RegisterWalletRoutes(r fiber.Router, wallets *wallet.Service, transfers *transfer.Service, accounts account.Service) {
	r.Get("/balance", func(c *fiber.Ctx) error {
		identityID, _ := c.Locals(middleware.LocalIdentityID).(string)

		w, err := wallets.Get(c.UserContext(), identityID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}

		addr := common.HexToAddress(w.Address)
		eth, err := accounts.GetBalance(c.UserContext(), addr)
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "failed to fetch balance")
		}
		usdc, err := accounts.GetTokenBalance(c.UserContext(), addr, "USDC")
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "failed to fetch balance")
		}
		usdt, err := accounts.GetTokenBalance(c.UserContext(), addr, "USDT")
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "failed to fetch balance")
		}

		return c.JSON(fiber.Map{
			"address": w.Address,
			"chainId": w.ChainID,
			"balances": fiber.Map{
				"ETH":  eth.String(),
				"USDC": usdc.String(),
				"USDT": usdt.String(),
			},
		})
	})

	r.Post("/prepare-transaction", func(c *fiber.Ctx) error {
		var req struct {
			To     string `json:"to"`
			Amount string `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.To == "" || req.Amount == "" {
			return fiber.NewError(http.StatusBadRequest, "recipient address and amount required")
		}

		params := transfer.Params{Amount: req.Amount, Recipient: req.To}
		if err := transfer.ValidateParams(params); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		identityID, _ := c.Locals(middleware.LocalIdentityID).(string)
		w, err := wallets.Get(c.UserContext(), identityID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}

		owner := common.HexToAddress(w.Address)
		estimate, err := accounts.EstimateGas(c.UserContext(), owner, account.Transaction{
			To:    common.HexToAddress(req.To),
			Value: weiFromDecimal(req.Amount),
		})
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, "failed to prepare transaction")
		}

		return c.JSON(fiber.Map{
			"transaction": fiber.Map{
				"from":   w.Address,
				"to":     req.To,
				"amount": req.Amount,
			},
			"estimatedCost":     estimate.TotalCost().String(),
			"requiresSignature": true,
		})
	})
}

// weiFromDecimal converts a validated decimal ether amount to wei.
func weiFromDecimal(amount string) *big.Int {
	value, _ := new(big.Float).SetPrec(236).SetString(amount)
	wei, _ := new(big.Float).Mul(value, big.NewFloat(1e18)).Int(nil)
	return wei
}

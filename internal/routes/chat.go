package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chainchat/chainchat/internal/chat"
)

type chatTurnRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// RegisterChatRoutes wires the inbound chat webhook. The reply is returned
// in the response body and also pushed through the notifier, matching how
// chat providers deliver messages out-of-band.
func RegisterChatRoutes(r fiber.Router, dispatcher *chat.Dispatcher, notifier chat.Notifier, rateLimiter fiber.Handler) {
	handler := func(c *fiber.Ctx) error {
		var req chatTurnRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.From == "" || req.Text == "" {
			return fiber.NewError(http.StatusBadRequest, "from and text are required")
		}

		reply := dispatcher.Process(c.UserContext(), req.From, req.Text)

		if notifier != nil {
			_ = notifier.Send(c.UserContext(), chat.Message{
				Kind:        chat.KindReply,
				Destination: req.From,
				Body:        reply,
			})
		}
		return c.JSON(fiber.Map{"reply": reply})
	}

	if rateLimiter != nil {
		r.Post("/chat/webhook", rateLimiter, handler)
	} else {
		r.Post("/chat/webhook", handler)
	}
}

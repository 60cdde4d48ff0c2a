package chat

import (
	"context"
	"log/slog"
)

const (
	// KindReply indicates an outbound chat reply to a user.
	KindReply = "chat_reply"
)

// Message describes an outbound notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers replies to the chat provider.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes outbound messages to
// the logger. Used in development and tests where no chat provider is wired.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

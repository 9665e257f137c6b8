package telegram

import (
	"context"
	"errors"

	"gopkg.in/telebot.v3"
)

// ErrRecipientUnavailable is returned when the recipient can never be
// reached (bot blocked, account deactivated). Other send errors are transient.
var ErrRecipientUnavailable = errors.New("telegram recipient unavailable")

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error
}

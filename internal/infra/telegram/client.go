// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	domaintg "holiday_notification_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

// sender is the part of *telebot.Bot the adapter needs.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
// Outgoing messages are throttled by a token bucket shared by all callers.
type TelebotAdapter struct {
	bot     sender
	limiter *rate.Limiter
	logger  *logrus.Entry
}

// NewTelebotAdapter limits sends to ratePerSec messages per second.
// A non-positive rate disables throttling.
func NewTelebotAdapter(b sender, ratePerSec float64, logger *logrus.Entry) *TelebotAdapter {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSec > 0 {
		burst := int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &TelebotAdapter{bot: b, limiter: limiter, logger: logger}
}

// SendMessage sends a text message to the specified recipient.
// Permanent failures are wrapped with domaintg.ErrRecipientUnavailable.
func (tba *TelebotAdapter) SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	if err := tba.limiter.Wait(ctx); err != nil {
		return err
	}

	recipient := &telebot.User{ID: recipientChatID} // Subscribers talk to the bot in private chats
	_, err := tba.bot.Send(recipient, text, options)
	if err == nil {
		return nil
	}
	if isRecipientUnavailable(err) {
		return fmt.Errorf("%w: %v", domaintg.ErrRecipientUnavailable, err)
	}

	var flood telebot.FloodError
	if errors.As(err, &flood) {
		tba.logger.WithFields(logrus.Fields{
			"chat_id":     recipientChatID,
			"retry_after": flood.RetryAfter,
		}).Warn("Telegram flood control hit")
	}
	return err
}

func isRecipientUnavailable(err error) bool {
	return errors.Is(err, telebot.ErrBlockedByUser) ||
		errors.Is(err, telebot.ErrUserIsDeactivated) ||
		errors.Is(err, telebot.ErrChatNotFound)
}

// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"holiday_notification_bot/internal/app"
	"holiday_notification_bot/internal/domain/subscriber"
	"holiday_notification_bot/internal/infra/config"
	"holiday_notification_bot/internal/infra/locale"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const upcomingHolidaysLimit = 5

// languageButton is the inline button family used by /lang.
var languageButton = &telebot.Btn{Unique: "lang"}

var markdown = &telebot.SendOptions{ParseMode: telebot.ModeMarkdown}

type commandHandlers struct {
	ctx         context.Context
	subscribers *app.SubscriberService
	admin       *app.AdminService
	messages    *locale.Catalog
	cfg         *config.AppConfig
	logger      *logrus.Entry
	now         func() time.Time
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig,
	subscriberService *app.SubscriberService,
	adminService *app.AdminService,
	messages *locale.Catalog,
	baseLogger *logrus.Entry, // For contextual logging
) {
	h := newCommandHandlers(ctx, cfg, subscriberService, adminService, messages, baseLogger)

	b.Handle("/start", h.start)
	b.Handle("/help", h.help)
	b.Handle("/set_birthday", h.setBirthday)
	b.Handle("/my_birthday", h.myBirthday)
	b.Handle("/clear_birthday", h.clearBirthday)
	b.Handle("/lang", h.lang)
	b.Handle(languageButton, h.languageChosen)
	b.Handle("/holidays", h.holidays)
}

func newCommandHandlers(
	ctx context.Context,
	cfg *config.AppConfig,
	subscriberService *app.SubscriberService,
	adminService *app.AdminService,
	messages *locale.Catalog,
	baseLogger *logrus.Entry,
) *commandHandlers {
	return &commandHandlers{
		ctx:         ctx,
		subscribers: subscriberService,
		admin:       adminService,
		messages:    messages,
		cfg:         cfg,
		logger:      baseLogger.WithField("handler_group", "subscriber_commands"),
		now:         time.Now,
	}
}

func (h *commandHandlers) log(c telebot.Context, command string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{"command": command, "sender_id": c.Sender().ID})
}

// localeOf resolves the language for replies: the stored preference, then
// the Telegram client language when supported, then the default.
func (h *commandHandlers) localeOf(c telebot.Context) string {
	sub, err := h.subscribers.Subscriber(h.ctx, c.Sender().ID)
	if err == nil && sub.Locale != "" {
		return sub.Locale
	}
	if err != nil && !errors.Is(err, subscriber.ErrNotFound) {
		h.log(c, "locale").WithError(err).Warn("Failed to load subscriber locale")
	}
	if code := c.Sender().LanguageCode; code != "" && h.subscribers.Supports(code) {
		return strings.ToLower(code)
	}
	return h.subscribers.DefaultLocale()
}

func (h *commandHandlers) internalError(c telebot.Context, logCtx *logrus.Entry, err error, loc string) error {
	logCtx.WithError(err).Error("Command failed")
	return c.Send(h.messages.T("internal_error", loc))
}

func (h *commandHandlers) start(c telebot.Context) error {
	logCtx := h.log(c, "/start")
	logCtx.Info("Processing /start command")

	sender := c.Sender()
	sub, err := h.subscribers.Register(h.ctx, sender.ID, sender.FirstName)
	if err != nil {
		return h.internalError(c, logCtx, err, h.localeOf(c))
	}
	logCtx.WithField("subscriber_id", sub.ID).Info("Subscriber registered")
	return c.Send(h.messages.T("start", sub.Locale, sender.FirstName))
}

func (h *commandHandlers) help(c telebot.Context) error {
	logCtx := h.log(c, "/help")
	logCtx.Info("Processing /help command")

	text := h.messages.T("help", h.localeOf(c), h.cfg.SendHourStart, h.cfg.SendHourEnd)
	if h.admin != nil && h.admin.IsAdmin(c.Sender().ID) {
		logCtx.Info("User identified as Admin, appending admin help.")
		return c.Send(text + "\n\n" + adminHelp)
	}
	return c.Send(text)
}

func (h *commandHandlers) setBirthday(c telebot.Context) error {
	logCtx := h.log(c, "/set_birthday")
	loc := h.localeOf(c)

	args := c.Args()
	if len(args) == 0 {
		return c.Send(h.messages.T("set_birthday_usage", loc), markdown)
	}
	// "28 08 2000" is accepted as well as "28-08-2000".
	raw := strings.Join(args, ".")

	b, err := h.subscribers.SetBirthday(h.ctx, c.Sender().ID, c.Sender().FirstName, raw)
	if err != nil {
		if errors.Is(err, app.ErrInvalidBirthday) {
			logCtx.WithError(err).Info("Invalid birthday input")
			return c.Send(h.messages.T("birthday_invalid", loc), markdown)
		}
		return h.internalError(c, logCtx, err, loc)
	}
	logCtx.WithField("birthday", b.String()).Info("Birthday saved")
	return c.Send(h.messages.T("birthday_saved", loc, formatBirthday(b)))
}

func (h *commandHandlers) myBirthday(c telebot.Context) error {
	logCtx := h.log(c, "/my_birthday")
	loc := h.localeOf(c)

	b, err := h.subscribers.Birthday(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrBirthdayNotSet) || errors.Is(err, subscriber.ErrNotFound) {
			return c.Send(h.messages.T("birthday_not_set", loc), markdown)
		}
		return h.internalError(c, logCtx, err, loc)
	}
	return c.Send(h.messages.T("my_birthday", loc, formatBirthday(b)))
}

func (h *commandHandlers) clearBirthday(c telebot.Context) error {
	logCtx := h.log(c, "/clear_birthday")
	loc := h.localeOf(c)

	err := h.subscribers.ClearBirthday(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrBirthdayNotSet) || errors.Is(err, subscriber.ErrNotFound) {
			return c.Send(h.messages.T("birthday_already_cleared", loc))
		}
		return h.internalError(c, logCtx, err, loc)
	}
	logCtx.Info("Birthday cleared")
	return c.Send(h.messages.T("birthday_cleared", loc))
}

func (h *commandHandlers) lang(c telebot.Context) error {
	loc := h.localeOf(c)
	args := c.Args()
	if len(args) == 0 {
		return c.Send(h.messages.T("lang_usage", loc, strings.Join(h.subscribers.Locales(), "|")), h.languageKeyboard())
	}
	return h.changeLocale(c, h.log(c, "/lang"), args[0], loc)
}

func (h *commandHandlers) languageChosen(c telebot.Context) error {
	logCtx := h.log(c, "lang_callback")
	data := ""
	if cb := c.Callback(); cb != nil {
		data = cb.Data
	}
	if err := c.Respond(); err != nil {
		logCtx.WithError(err).Warn("Failed to answer callback")
	}
	return h.changeLocale(c, logCtx, data, h.localeOf(c))
}

func (h *commandHandlers) changeLocale(c telebot.Context, logCtx *logrus.Entry, requested, current string) error {
	err := h.subscribers.SetLocale(h.ctx, c.Sender().ID, c.Sender().FirstName, requested)
	if err != nil {
		if errors.Is(err, app.ErrUnsupportedLocale) {
			return c.Send(h.messages.T("lang_unsupported", current, strings.Join(h.subscribers.Locales(), ", ")))
		}
		return h.internalError(c, logCtx, err, current)
	}
	next := strings.ToLower(strings.TrimSpace(requested))
	logCtx.WithField("locale", next).Info("Locale changed")
	return c.Send(h.messages.T("lang_set", next, h.messages.T("language_name", next)))
}

func (h *commandHandlers) languageKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	var btns []telebot.Btn
	for _, l := range h.subscribers.Locales() {
		btns = append(btns, markup.Data(h.messages.T("language_name", l), languageButton.Unique, l))
	}
	markup.Inline(markup.Row(btns...))
	return markup
}

func (h *commandHandlers) holidays(c telebot.Context) error {
	logCtx := h.log(c, "/holidays")
	loc := h.localeOf(c)

	upcoming, err := h.subscribers.UpcomingHolidays(h.ctx, h.now(), upcomingHolidaysLimit)
	if err != nil {
		return h.internalError(c, logCtx, err, loc)
	}
	if len(upcoming) == 0 {
		return c.Send(h.messages.T("holidays_empty", loc))
	}

	var response strings.Builder
	response.WriteString(h.messages.T("holidays_header", loc))
	for _, u := range upcoming {
		response.WriteString("\n")
		date := u.Date.Format("02.01")
		if u.DaysUntil == 0 {
			response.WriteString(h.messages.T("holidays_item_today", loc, date, u.Event.NameFor(loc)))
			continue
		}
		response.WriteString(h.messages.T("holidays_item", loc, date, u.Event.NameFor(loc), u.DaysUntil))
	}
	return c.Send(response.String())
}

func formatBirthday(b subscriber.Birthday) string {
	if b.Year != 0 {
		return fmt.Sprintf("%02d.%02d.%04d", b.Day, b.Month, b.Year)
	}
	return b.String()
}

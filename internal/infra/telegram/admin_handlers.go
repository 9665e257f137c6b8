package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"holiday_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const adminHelp = "Команды администратора:\n" +
	"/add_today_holiday <Название> - добавить праздник на сегодняшнюю дату\n" +
	"/add_holiday <ДД-ММ> <Название> - добавить праздник на указанную дату\n" +
	"/list_holidays - показать все праздники"

const msgAdminUnauthorized = "Ошибка: У вас нет прав для выполнения этой команды."

type adminHandlers struct {
	ctx    context.Context
	admin  *app.AdminService
	logger *logrus.Entry
	now    func() time.Time
}

// RegisterAdminHandlers registers handlers for admin commands.
// Every command answers non-admins with a refusal.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	h := &adminHandlers{ctx: ctx, admin: adminService, logger: baseLogger, now: time.Now}
	b.Handle("/add_today_holiday", h.addTodayHoliday)
	b.Handle("/add_holiday", h.addHoliday)
	b.Handle("/list_holidays", h.listHolidays)
}

func (h *adminHandlers) log(c telebot.Context, command string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": c.Sender().ID,
	})
}

func (h *adminHandlers) addTodayHoliday(c telebot.Context) error {
	handlerLogger := h.log(c, "/add_today_holiday")
	handlerLogger.Info("Command received")

	if !h.admin.IsAdmin(c.Sender().ID) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(msgAdminUnauthorized)
	}

	name := strings.TrimSpace(strings.Join(c.Args(), " "))
	if name == "" {
		return c.Send("Неверный формат команды. Используйте: /add_today_holiday <Название>")
	}

	ev, err := h.admin.AddTodayHoliday(h.ctx, c.Sender().ID, name, h.now())
	if err != nil {
		return h.replyAddError(c, handlerLogger.WithField("name", name), err, name)
	}

	handlerLogger.WithFields(logrus.Fields{"holiday_id": ev.ID, "day": ev.Day, "month": ev.Month}).Info("Holiday added for today")
	return c.Send(fmt.Sprintf("Праздник «%s» добавлен на %02d.%02d. Рассылка начнётся в ближайшее окно отправки.", ev.Name, ev.Day, ev.Month))
}

func (h *adminHandlers) addHoliday(c telebot.Context) error {
	handlerLogger := h.log(c, "/add_holiday")
	handlerLogger.Info("Command received")

	if !h.admin.IsAdmin(c.Sender().ID) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(msgAdminUnauthorized)
	}

	args := c.Args()
	// Expected format: /add_holiday <DD-MM> <Name...>
	if len(args) < 2 {
		handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
		return c.Send("Неверный формат команды. Используйте: /add_holiday <ДД-ММ> <Название>")
	}

	date, err := app.ParseBirthday(args[0], h.now())
	if err != nil || date.Year != 0 {
		handlerLogger.WithField("arg", args[0]).Warn("Invalid holiday date")
		return c.Send("Ошибка: дата должна быть в формате ДД-ММ, например 08-03.")
	}
	name := strings.Join(args[1:], " ")

	ev, err := h.admin.AddHoliday(h.ctx, c.Sender().ID, date.Day, date.Month, name)
	if err != nil {
		return h.replyAddError(c, handlerLogger.WithField("name", name), err, name)
	}

	handlerLogger.WithField("holiday_id", ev.ID).Info("Holiday added")
	return c.Send(fmt.Sprintf("Праздник «%s» добавлен на %02d.%02d.", ev.Name, ev.Day, ev.Month))
}

func (h *adminHandlers) replyAddError(c telebot.Context, logCtx *logrus.Entry, err error, name string) error {
	logWithError := logCtx.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return c.Send(msgAdminUnauthorized)
	case errors.Is(err, app.ErrHolidayAlreadyExists):
		logWithError.Warn("Holiday already exists")
		return c.Send(fmt.Sprintf("Праздник «%s» на эту дату уже существует.", name))
	case errors.Is(err, app.ErrInvalidHolidayDate):
		logWithError.Warn("Impossible holiday date")
		return c.Send("Ошибка: такой даты не существует.")
	case errors.Is(err, app.ErrEmptyHolidayName):
		return c.Send("Ошибка: Название не может быть пустым.")
	default:
		logWithError.Error("Failed to add holiday")
		return c.Send(fmt.Sprintf("Произошла ошибка при добавлении праздника: %s", err.Error()))
	}
}

func (h *adminHandlers) listHolidays(c telebot.Context) error {
	handlerLogger := h.log(c, "/list_holidays")
	if !h.admin.IsAdmin(c.Sender().ID) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(msgAdminUnauthorized)
	}

	holidays, err := h.admin.ListHolidays(h.ctx, c.Sender().ID)
	if err != nil {
		handlerLogger.WithError(err).Error("Failed to get list of holidays")
		return c.Send(fmt.Sprintf("Произошла ошибка при получении списка праздников: %s", err.Error()))
	}
	if len(holidays) == 0 {
		return c.Send("Список праздников пуст.")
	}

	handlerLogger.WithField("holidays_count", len(holidays)).Info("Successfully retrieved holiday list")

	var response strings.Builder
	response.WriteString("--- Праздники ---\n")
	for _, ev := range holidays {
		response.WriteString(fmt.Sprintf("ID: %d, Дата: %02d.%02d, Название: %s\n", ev.ID, ev.Day, ev.Month, ev.Name))
	}
	return c.Send(response.String())
}

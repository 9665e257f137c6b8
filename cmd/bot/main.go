// Command bot runs the holiday notification bot.
//
// Usage:
//
//	holiday-bot                               run the bot and the scheduler
//	holiday-bot seed                          store the bundled holiday list
//	holiday-bot add-today-holiday Test Day    add a holiday on today's date
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"holiday_notification_bot/internal/app"
	"holiday_notification_bot/internal/infra/config"
	idb "holiday_notification_bot/internal/infra/database"
	"holiday_notification_bot/internal/infra/locale"
	"holiday_notification_bot/internal/infra/logger"
	"holiday_notification_bot/internal/infra/scheduler"
	"holiday_notification_bot/internal/infra/telegram"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "holiday-bot",
		Short:        "Holiday and birthday notification bot",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return runBot() },
	}
	root.AddCommand(runCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(addTodayHolidayCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Telegram bot and the notification scheduler",
		RunE:  func(cmd *cobra.Command, args []string) error { return runBot() },
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the bundled holiday list, skipping existing holidays",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHolidayService(func(ctx context.Context, hs *app.HolidayService) error {
				holidays, err := locale.Holidays()
				if err != nil {
					return fmt.Errorf("load bundled holidays: %w", err)
				}
				_, err = hs.Seed(ctx, holidays)
				return err
			})
		},
	}
}

func addTodayHolidayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-today-holiday <name...>",
		Short: "Add a holiday on today's date so the next tick delivers it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHolidayService(func(ctx context.Context, hs *app.HolidayService) error {
				ev, created, err := hs.AddToday(ctx, strings.Join(args, " "), time.Now())
				if err != nil {
					return err
				}
				logger.Log.WithFields(logrus.Fields{
					"holiday_id": ev.ID,
					"created":    created,
					"date":       fmt.Sprintf("%02d.%02d", ev.Day, ev.Month),
				}).Info("Holiday for today stored")
				return nil
			})
		},
	}
}

// withHolidayService opens the database without requiring a Telegram token.
func withHolidayService(fn func(ctx context.Context, hs *app.HolidayService) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg)

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	hs := app.NewHolidayService(idb.NewPostgresHolidayRepository(db), cfg.Location, logger.Component("holidays"))
	return fn(ctx, hs)
}

func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := idb.NewPostgresConnection(url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := idb.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func runBot() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"timezone":    cfg.Timezone,
		"send_window": fmt.Sprintf("%02d-%02d", cfg.SendHourStart, cfg.SendHourEnd),
		"batch_size":  cfg.BatchSize,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	// Initialize Database Connection
	db, err := openDatabase(appCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	mainLogger.Info("Database connection established and schema applied.")

	// Initialize Repositories
	subscriberRepo := idb.NewPostgresSubscriberRepository(db)
	holidayRepo := idb.NewPostgresHolidayRepository(db)
	ledger := idb.NewPostgresDeliveryLedger(db)

	messages, err := locale.Load(cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("could not load messages: %w", err)
	}

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "text": c.Text()})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return fmt.Errorf("could not create Telegram bot: %w", err)
	}
	tgClient := telegram.NewTelebotAdapter(bot, cfg.TelegramRatePerSec, logger.Component("telegram"))

	// Initialize Services
	holidayService := app.NewHolidayService(holidayRepo, cfg.Location, logger.Component("holidays"))
	subscriberService := app.NewSubscriberService(subscriberRepo, holidayRepo, ledger, messages.Locales(), messages.DefaultLocale(), cfg.Location)
	adminService := app.NewAdminService(holidayService, cfg.AdminTelegramID)
	dispatcher := app.NewDispatcher(ledger, locale.NewComposer(messages), tgClient, logger.Component("dispatcher"), cfg.BatchSize, cfg.BatchPause).
		SuppressUnavailable(cfg.SuppressBlocked)
	notificationService := app.NewNotificationServiceImpl(
		holidayRepo,
		subscriberRepo,
		ledger,
		dispatcher,
		app.SendWindow{StartHour: cfg.SendHourStart, EndHour: cfg.SendHourEnd, Location: cfg.Location},
		logger.Component("notifications"),
	)

	// Register Handlers
	telegram.RegisterBotCommands(appCtx, bot, cfg, subscriberService, adminService, messages, logger.Component("bot"))
	if cfg.AdminTelegramID != 0 {
		telegram.RegisterAdminHandlers(appCtx, bot, adminService, logger.Component("admin"))
		mainLogger.Info("Admin command handlers registered.")
	}

	notifScheduler := scheduler.NewNotificationScheduler(notificationService, logger.Component("scheduler"), cfg.SchedulerPeriod, cfg.Location)
	notifScheduler.Start()

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and Scheduler are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	notifScheduler.Stop()
	cancelApp()
	mainLogger.Info("Application shut down gracefully.")
	return nil
}

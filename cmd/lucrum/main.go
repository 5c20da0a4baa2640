package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lucrumlabs/lucrum/internal/adrates"
	"github.com/lucrumlabs/lucrum/internal/balance"
	"github.com/lucrumlabs/lucrum/internal/config"
	"github.com/lucrumlabs/lucrum/internal/counters"
	"github.com/lucrumlabs/lucrum/internal/events"
	"github.com/lucrumlabs/lucrum/internal/http_api"
	"github.com/lucrumlabs/lucrum/internal/jobs"
	"github.com/lucrumlabs/lucrum/internal/limits"
	"github.com/lucrumlabs/lucrum/internal/lucrum"
	"github.com/lucrumlabs/lucrum/internal/notificator"
	"github.com/lucrumlabs/lucrum/internal/reconcile"
	"github.com/lucrumlabs/lucrum/internal/repository"
	"github.com/lucrumlabs/lucrum/internal/store"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "lucrum",
		Usage: "Lucrum is a passive income dashboard simulation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "data-dir", Usage: "Durable store directory"},
			&cli.StringFlag{Name: "timezone", Aliases: []string{"z"}, Usage: "Daily cycle timezone"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("timezone") {
		cfg.Timezone = c.String("timezone")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the key-value stores: the file-backed one survives restarts,
	// the in-memory one only the process.
	durable, err := store.OpenFileStore(cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("failed to open durable store: %v", err)
	}
	defer durable.Flush()
	volatile := store.NewMemStore()

	// Initialize the event bus
	bus := events.NewBus(log)

	// Initialize the notificator
	var telNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		telNotif, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, db)
		if err != nil {
			return fmt.Errorf("failed to start telegram notificator: %v", err)
		}
	}
	emailNotif := notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, db)
	notif := notificator.NewNotificator(log, db, telNotif, emailNotif)

	// Initialize the ad-rates service
	rates := adrates.NewService(cfg.AdRatesURL, log)
	rates.StartPeriodicUpdate()
	defer rates.Stop()

	// Initialize the simulation core
	manager := balance.NewManager(durable, volatile, bus, log)
	reconciler := reconcile.NewReconciler(db, durable, volatile, manager, bus, cfg.Location(), cfg.ReconcileEvery, log)
	counterEngine := counters.NewEngine(durable, rates.Rates, cfg.CounterSeed, cfg.CounterTickEvery, cfg.WatchdogEvery, cfg.WatchdogStaleAfter, log)
	trial := limits.NewTrial(durable, cfg.TrialDuration, log)

	engine := lucrum.NewEngine(
		db, durable, volatile,
		manager, reconciler, counterEngine, trial,
		bus, notif,
		cfg.Location(), cfg.LimitThreshold, cfg.ApproachingThreshold,
		cfg.CounterSeed, log,
	)
	engine.Start()
	defer engine.Stop()

	// Initialize the daily cycle scheduler
	scheduler := jobs.NewScheduler(engine, durable, cfg.Location(), log)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Initialize API server
	apiServer := http_api.NewHTTPServer(engine, cfg.APIPort, log)
	go apiServer.Start()

	// Wait for a termination signal, then shut everything down in order.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := apiServer.Shutdown(); err != nil {
		log.Error("API server shutdown error: ", err)
	}
	return nil
}

// Package app wires configuration, storage, notifications and services into
// the object graph shared by the server and the cron runner.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/notify"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/repository/memory"
	"library-circulation-backend/internal/repository/postgres"
	"library-circulation-backend/internal/service"
)

type Services struct {
	Requests      service.BorrowRequestService
	Records       service.BorrowRecordService
	Ebooks        service.EbookService
	Returns       service.ReturnService
	Notifications service.NotificationService
	Reminders     service.ReminderService
}

type App struct {
	Config   *config.Config
	DB       *sql.DB // nil with the memory driver
	Store    repository.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Notifier *notify.Queue
	Services Services
}

// New opens the configured store and builds every service. The notifier is
// created but not started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	sinks := []notify.Sink{notify.NewStoreSink(a.Store.Notifications())}
	if cfg.Notifications.Email {
		logger.Info("Email notifications enabled", "from", cfg.SendGrid.FromEmail)
		sinks = append(sinks, notify.NewEmailSink(a.Store.Users(), cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
	}
	a.Notifier = notify.NewQueue(cfg.Notifications.Workers, cfg.Notifications.QueueSize, a.Metrics, sinks...)

	clock := service.SystemClock()
	allocator := service.NewHoldQueueAllocator(a.Metrics)
	a.Services = Services{
		Requests: service.NewBorrowRequestService(a.Store, allocator, a.Notifier, cfg.Loan.MaxDays),
		Records:  service.NewBorrowRecordService(a.Store, a.Notifier, a.Metrics, cfg.Loan.MaxDays),
		Ebooks:   service.NewEbookService(a.Store, a.Notifier, a.Metrics, cfg.Loan.MaxDays),
		Returns: service.NewReturnService(a.Store, allocator,
			service.NewStaticPolicyCatalog(cfg.Policies),
			a.Notifier, clock, service.NewULIDGenerator(), a.Metrics),
		Notifications: service.NewNotificationService(a.Store.Notifications()),
		Reminders:     service.NewReminderService(a.Store.BorrowRecords(), a.Notifier, clock),
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store; data is lost on exit")
		a.Store = memory.NewStore()
		return nil
	}

	logger.Info("Connecting to database...", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "user", cfg.User)
	db, err := sql.Open("postgres", a.Config.GetDatabaseConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info("Database schema applied")
	}

	isolation := sql.LevelReadCommitted
	if cfg.Isolation == config.IsolationSerializable {
		isolation = sql.LevelSerializable
	}
	a.DB = db
	a.Store = postgres.NewStore(db, postgres.StoreOptions{Isolation: isolation, MaxRetries: cfg.MaxRetries})
	return nil
}

// Close drains pending notifications and closes the database.
func (a *App) Close() {
	a.Notifier.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}
}

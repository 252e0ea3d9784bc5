package main

import (
	"context"
	"errors"
	"fmt"
	_ "lending-backoffice/docs"
	"lending-backoffice/internal/api"
	"lending-backoffice/internal/api/middleware"
	"lending-backoffice/internal/batch"
	"lending-backoffice/internal/config"
	"lending-backoffice/internal/domain/accrual"
	"lending-backoffice/internal/domain/customer"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/domain/tenant"
	"lending-backoffice/internal/event"
	"lending-backoffice/internal/infrastructure/cache"
	"lending-backoffice/internal/infrastructure/database/postgres"
	"lending-backoffice/internal/infrastructure/logging"
	"lending-backoffice/internal/infrastructure/tracing"
	"lending-backoffice/internal/notification"
	"lending-backoffice/internal/report"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultReminderSchedule = "0 8 * * *"
	defaultReminderTimeout  = 30 * time.Minute
)

// @title Lending Back-Office API
// @version 1.0
// @description Loan servicing API: disbursal, collections, repayment accrual, settlement waivers and credit bureau export.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing := initializeTracing(ctx, cfg, logger)
	defer shutdownTracing()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	redisClient := initializeRedis(cfg.Redis, logger)
	defer closeRedis(redisClient, logger)

	rabbitConn := initializeRabbitMQ(cfg.RabbitMQ, logger)
	defer closeRabbitMQ(rabbitConn, logger)

	publisher := initializePublisher(rabbitConn, cfg.RabbitMQ, logger)
	app := initializeServices(cfg, dbPool, redisClient, publisher, logger)

	sender := notification.NewEmailSender(cfg.SMTP, logger)
	consumer := startReceiptConsumer(ctx, rabbitConn, cfg.RabbitMQ, app.customers, sender, logger)

	reminderJob := batch.NewReminderJob(
		app.loanRepo,
		app.loans,
		app.customers,
		sender,
		publisher,
		batch.ReminderJobConfig{LeadDays: cfg.Batch.ReminderLeadDays, Workers: cfg.Batch.Workers},
		logger,
	)
	cronScheduler := startBatchJobs(cfg, logger, reminderJob)

	var limiter *middleware.RateLimiterMiddleware
	if cfg.Server.RateLimit.Enabled {
		limiter = middleware.NewRateLimiterMiddleware(cfg.Server.RateLimit, redisClient, logger)
		go limiter.Run(ctx)
	}

	router := api.SetupRouter(api.Services{
		Loans:     app.loans,
		Customers: app.customers,
		Tenants:   app.tenants,
		Reports:   report.NewExporter(app.loanRepo, app.tenants, logger),
	}, limiter, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)

	stop()
	if consumer != nil {
		consumer.Stop()
	}
}

type services struct {
	loans     loan.LoanService
	customers customer.CustomerService
	tenants   tenant.TenantService
	loanRepo  *postgres.LoanRepository
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Tracing disabled, exporter could not be initialised", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer provider shutdown failed", "error", err)
		}
	}
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.URL, logger); err != nil {
		logger.Error("Failed to apply database migrations", "error", err)
		dbPool.Close()
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// initializeRedis returns nil when no address is configured. Callers treat a
// nil client as "no shared cache".
func initializeRedis(cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("Redis address not configured, running without shared cache")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis ping failed, continuing without shared cache", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("Connected to Redis", "addr", cfg.Addr)
	return client
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if client == nil {
		return
	}
	logger.Info("Closing Redis client...")
	if err := client.Close(); err != nil {
		logger.Error("Error closing Redis client", "error", err)
	}
}

func initializeRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) *amqp.Connection {
	conn, err := connectRabbitMQ(cfg, logger)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, events will only be logged", slog.Any("error", err))
		return nil
	}
	return conn
}

func connectRabbitMQ(cfg config.RabbitMQConfig, logger *slog.Logger) (*amqp.Connection, error) {
	logger.Info("Connecting to RabbitMQ", "host", cfg.Host, "port", cfg.Port)
	uri := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("RabbitMQ connection established.")

	go func() {
		closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if closeErr != nil {
			logger.Error("RabbitMQ connection closed unexpectedly", slog.Any("error", closeErr))
		}
	}()

	return conn, nil
}

func closeRabbitMQ(conn *amqp.Connection, logger *slog.Logger) {
	if conn == nil {
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := conn.Close(); err != nil {
		logger.Error("Error closing RabbitMQ connection", slog.Any("error", err))
	}
}

func initializePublisher(conn *amqp.Connection, cfg config.RabbitMQConfig, logger *slog.Logger) event.EventPublisher {
	if conn == nil {
		return event.NewLogPublisher(logger)
	}
	pub, err := event.NewRabbitMQEventPublisher(event.AMQPOpener{Conn: conn}, cfg.ExchangeName, logger)
	if err != nil {
		logger.Warn("Failed to set up RabbitMQ publisher, falling back to log publisher", slog.Any("error", err))
		return event.NewLogPublisher(logger)
	}
	return pub
}

func initializeServices(
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	redisClient *redis.Client,
	publisher event.EventPublisher,
	logger *slog.Logger,
) services {
	logger.Info("Initializing application components...")
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	customerRepo := postgres.NewCustomerRepository(dbPool, logger)
	tenantRepo := postgres.NewTenantRepository(dbPool, logger)

	var rateCache tenant.RateCache
	if redisClient != nil {
		rateCache = cache.NewTenantRateCache(redisClient, cfg.Redis.TenantCacheTTL, logger)
	}

	tenantService := tenant.NewTenantService(tenantRepo, rateCache, defaultPenaltyROI(cfg.Accrual, logger), logger)
	customerService := customer.NewCustomerService(customerRepo, publisher, logger)
	loanService := loan.NewLoanService(loanRepo, customerService, tenantService, publisher, logger)

	return services{
		loans:     loanService,
		customers: customerService,
		tenants:   tenantService,
		loanRepo:  loanRepo,
	}
}

func defaultPenaltyROI(cfg config.AccrualConfig, logger *slog.Logger) decimal.Decimal {
	if cfg.DefaultPenaltyROI == "" {
		return accrual.DefaultPenaltyROI
	}
	rate, err := decimal.NewFromString(cfg.DefaultPenaltyROI)
	if err != nil || rate.IsNegative() {
		logger.Warn("Invalid default penalty rate, using built-in value",
			"configured", cfg.DefaultPenaltyROI, "default", accrual.DefaultPenaltyROI.String())
		return accrual.DefaultPenaltyROI
	}
	return rate
}

func startReceiptConsumer(
	ctx context.Context,
	conn *amqp.Connection,
	cfg config.RabbitMQConfig,
	customers notification.CustomerReader,
	sender notification.Sender,
	logger *slog.Logger,
) *event.Consumer {
	if conn == nil {
		return nil
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("Failed to open RabbitMQ channel for receipts", slog.Any("error", err))
		return nil
	}

	handler := notification.NewReceiptHandler(customers, sender, logger)
	consumer, err := event.NewConsumer(ch, event.ConsumerConfig{
		ExchangeName:       cfg.ExchangeName,
		QueueName:          cfg.QueueName,
		ConsumerTag:        cfg.ConsumerTag,
		RoutingKeys:        []string{event.RoutingKeyCollectionRecorded},
		Prefetch:           cfg.Prefetch,
		DeadLetterExchange: cfg.DeadLetterExchange,
	}, handler.HandleDelivery, logger)
	if err != nil {
		logger.Error("Failed to create receipt consumer", slog.Any("error", err))
		return nil
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Error("Failed to start receipt consumer", slog.Any("error", err))
		return nil
	}
	logger.Info("Receipt consumer started.")
	return consumer
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, reminderJob *batch.ReminderJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.ReminderSchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultReminderSchedule
		logger.Warn("Reminder schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.ReminderTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultReminderTimeout
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "RepaymentReminder")
		jobLogger.Info("Cron triggered: Running repayment reminder job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := reminderJob.Run(ctx); runErr != nil {
			jobLogger.Error("Repayment reminder job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Repayment reminder job finished successfully.")
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule repayment reminder job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled repayment reminder job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

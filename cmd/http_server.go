package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thaiGO2003/DigiGO-sub000/internal"
	"github.com/thaiGO2003/DigiGO-sub000/internal/core/events"
	"github.com/thaiGO2003/DigiGO-sub000/internal/notification"
	"github.com/thaiGO2003/DigiGO-sub000/internal/purchase"
	purchasePostgres "github.com/thaiGO2003/DigiGO-sub000/internal/purchase/postgres"
	"github.com/thaiGO2003/DigiGO-sub000/internal/referral"
	"github.com/thaiGO2003/DigiGO-sub000/internal/topup"
	topupPostgres "github.com/thaiGO2003/DigiGO-sub000/internal/topup/postgres"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport/rest"
	"github.com/thaiGO2003/DigiGO-sub000/internal/user"
	userPostgres "github.com/thaiGO2003/DigiGO-sub000/internal/user/postgres"
	"github.com/thaiGO2003/DigiGO-sub000/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Router   *chi.Mux
	Logger   *slog.Logger
	Notifier *notification.Notifier
	Sweeper  *topup.Sweeper

	TopupHandler    *topup.Handler
	WebhookHandler  *topup.WebhookHandler
	PurchaseHandler *purchase.Handler
	UserHandler     *user.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		deps.Config,
		deps.TopupHandler,
		deps.WebhookHandler,
		deps.PurchaseHandler,
		deps.UserHandler,
		deps.Logger,
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go deps.Sweeper.Run(sweepCtx)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		stopSweeper()
		deps.Notifier.Shutdown()
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			stopSweeper()
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(config.Observability.Logging.Format, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	eventBus := events.NewEventBus(log)

	notifier := notification.NewNotifier(notification.Config{
		WebhookURL: config.Notification.WebhookURL,
		Timeout:    config.Notification.Timeout,
	}, log)
	notifier.SubscribeTo(eventBus)

	baseHandler := transport.NewBaseHandler(log)

	topupRepo := topupPostgres.NewTopupRepository(gormDB)
	topupService := topup.NewService(topupRepo, eventBus, topup.ServiceConfig{
		MinAmount:         config.Topup.MinAmount,
		MaxPendingPerUser: config.Topup.MaxPendingPerUser,
		ValidityWindow:    config.Topup.ValidityWindow,
		MemoPrefix:        config.Topup.MemoPrefix,
		Beneficiary: topup.Beneficiary{
			BankCode:      config.Beneficiary.BankCode,
			AccountNumber: config.Beneficiary.AccountNumber,
			AccountName:   config.Beneficiary.AccountName,
		},
	}, log)

	userRepo := userPostgres.NewUserRepository(gormDB)
	userService := user.NewService(userRepo, log)

	engine := referral.NewEngine(config.Commission)
	purchaseRepo := purchasePostgres.NewPurchaseRepository(gormDB)
	purchaseService := purchase.NewService(purchaseRepo, userRepo, engine, eventBus, log)

	sweeper := topup.NewSweeper(topupRepo, config.Topup.ValidityWindow, config.Topup.SweepInterval, log)

	return &Dependencies{
		Config:   config,
		Logger:   log,
		DB:       db,
		Router:   chi.NewRouter(),
		Notifier: notifier,
		Sweeper:  sweeper,

		TopupHandler:    topup.NewHandler(baseHandler, topupService, log),
		WebhookHandler:  topup.NewWebhookHandler(baseHandler, topupService, log),
		PurchaseHandler: purchase.NewHandler(baseHandler, purchaseService, log),
		UserHandler:     user.NewHandler(baseHandler, userService, log),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thaiGO2003/DigiGO-sub000/internal/topup"
	topupPostgres "github.com/thaiGO2003/DigiGO-sub000/internal/topup/postgres"
	"github.com/thaiGO2003/DigiGO-sub000/pkg/logger"
)

var sweepOnce bool

// sweepCmd runs the expiry sweeper standalone, for deployments that keep the
// API server and the sweeper in separate processes.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Stamp over-age pending top-ups as expired",
	Long:  `Run the expiry sweeper against the ledger store, either once or on an interval.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweeper()
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")
}

func startSweeper() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	sqlDB, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	repo := topupPostgres.NewTopupRepository(gormDB)
	sweeper := topup.NewSweeper(repo, cfg.Topup.ValidityWindow, cfg.Topup.SweepInterval, log)

	if sweepOnce {
		swept, err := sweeper.SweepOnce()
		if err != nil {
			log.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		log.Info("sweep complete", "swept", swept)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go sweeper.Run(ctx)

	sig := <-sigChan
	log.Info("received signal, stopping sweeper", "signal", sig)
	cancel()
}

package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stempede/stempede-api/internal/audit"
	"github.com/stempede/stempede-api/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the security audit consumer",
	Long:  `Drain the security audit queue and write each event to the structured log.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		logger.Init(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level)
		lg := logger.LoggerWrapper()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer := audit.NewConsumer(cfg.Broker, lg)
		lg.Info("audit worker starting", "queue", cfg.Broker.Queue)

		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("audit worker stopped", "error", err)
			os.Exit(1)
		}
		lg.Info("audit worker stopped")
	},
}

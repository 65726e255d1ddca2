package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bag-sniper/core/config"
	"bag-sniper/core/database"
	"bag-sniper/core/logger"
	"bag-sniper/core/sched"
	"bag-sniper/core/status"
	"bag-sniper/feature/bot"
	"bag-sniper/feature/history"
	"bag-sniper/feature/market"
	"bag-sniper/feature/notify"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reservation agent",
	Long:  `Starts the favorites poll loop and runs until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to History Database (Optional)
		var hist *history.Store
		if db, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional history database unavailable", zap.Error(err))
		} else {
			hist = history.NewStore(db, logg)
			if err := hist.Migrate(); err != nil {
				logg.Warn("History schema migration failed", zap.Error(err))
				hist = nil
			}
		}

		// 4. Initialize Marketplace Gateway
		client, err := market.NewHTTPClient(cfg.Market, logg)
		if err != nil {
			logg.Fatal("Failed to create marketplace client", zap.Error(err))
		}

		// 5. Initialize Scheduler and Bot
		scheduler := sched.New(logg)
		b := bot.New(client, scheduler, notify.NewLogPublisher(logg), hist, logg, cfg.Bot)

		// 6. Status Server (Optional)
		var statusServer *status.Server
		if cfg.Status.Enabled {
			statusServer = status.New(cfg.Status, logg, b)
			go func() {
				logg.Info("Starting status server", zap.String("port", cfg.Status.Port))
				if err := statusServer.Listen(); err != nil {
					logg.Error("Status server failed", zap.Error(err))
				}
			}()
		}

		// 7. Run until interrupted
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logg.Info("Starting favorites poll",
			zap.Duration("interval", cfg.Bot.PollInterval))
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Fatal("Agent stopped with error", zap.Error(err))
		}

		logg.Info("Shutting down...")
		if statusServer != nil {
			_ = statusServer.Shutdown()
		}
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
}

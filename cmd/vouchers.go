package cmd

import (
	"context"
	"fmt"

	"bag-sniper/core/config"
	"bag-sniper/core/logger"
	"bag-sniper/feature/market"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// vouchersCmd lists the account's active vouchers, showing the multi-use
// balance orders can draw from.
var vouchersCmd = &cobra.Command{
	Use:   "vouchers",
	Short: "List active vouchers and their remaining balance",
	RunE:  runVouchers,
}

func init() {
	RootCmd.AddCommand(vouchersCmd)
}

func runVouchers(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	client, err := market.NewHTTPClient(cfg.Market, l)
	if err != nil {
		return fmt.Errorf("failed to create marketplace client: %w", err)
	}

	vouchers, err := client.ActiveVouchers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch vouchers: %w", err)
	}

	l.Info("Fetched active vouchers", zap.Int("count", len(vouchers)))
	for _, v := range vouchers {
		fields := []zap.Field{
			zap.Int64("voucher_id", v.ID),
			zap.String("state", string(v.State)),
			zap.Bool("multi_use", v.IsMultiUse()),
		}
		if v.IsMultiUse() {
			fields = append(fields, zap.String("balance", v.Amount.String()))
		}
		l.Info(v.Name, fields...)
	}
	return nil
}

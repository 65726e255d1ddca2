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

var favoritesPageSize int

// favoritesCmd lists the account's favorited listings once and exits.
// Useful for discovering item ids to pin in BOT_TRACKED_ITEMS.
var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorited listings and their current state",
	Long: `Fetches the favorites page once and prints every listing with its id,
tag and available quantity.

Examples:
  # List favorites
  bag-sniper favorites

  # Fetch with a larger page size
  bag-sniper favorites --page-size 50`,
	RunE: runFavorites,
}

func init() {
	favoritesCmd.Flags().IntVar(&favoritesPageSize, "page-size", 25, "Favorites page size")
	RootCmd.AddCommand(favoritesCmd)
}

func runFavorites(cmd *cobra.Command, args []string) error {
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

	faves, err := client.Favorites(ctx, favoritesPageSize)
	if err != nil {
		return fmt.Errorf("failed to fetch favorites: %w", err)
	}

	l.Info("Fetched favorites", zap.Int("count", len(faves)))
	for _, f := range faves {
		fields := []zap.Field{
			zap.Int64("item_id", f.ID),
			zap.String("tag", string(f.Tag)),
			zap.Int("num_available", f.NumAvailable),
			zap.Bool("selling", f.IsSelling()),
		}
		if f.PickupInterval != nil {
			fields = append(fields, zap.String("pickup", f.PickupInterval.String()))
		}
		l.Info(f.Name, fields...)
	}
	return nil
}

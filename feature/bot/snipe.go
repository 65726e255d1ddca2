package bot

import (
	"context"
	"fmt"

	"bag-sniper/core/sched"
	"bag-sniper/feature/market"

	"go.uber.org/zap"
)

// Snipe races the restock of an item at its predicted drop instant. It
// refetches detail in a tight loop until the listing changes state, then
// reserves if stock appeared. The attempt budget widens permanently when a
// snipe only lands on its final attempt, adapting to how late this listing's
// restocks surface.
func (b *Bot) Snipe(ctx context.Context, snipe *market.Item) (*market.Reservation, error) {
	b.logger.Info("Sniping item",
		zap.Int64("item_id", snipe.ID),
		zap.String("name", snipe.Name))

	// The registry entry must age out whether or not the snipe lands; a
	// pending cleanup here means two snipes were armed for one item.
	if _, err := b.deferSnipeCleanup(snipe.ID, sched.ErrorOnDuplicate); err != nil {
		return nil, fmt.Errorf("conflicting snipe cleanup for item %d: %w", snipe.ID, err)
	}

	max := b.snipeBudget()
	for attempt := 0; attempt < max; attempt++ {
		item, err := b.fetch.Get(ctx, snipe.ID)
		if err != nil {
			b.logger.Error("Fetching item during snipe failed",
				zap.Int64("item_id", snipe.ID),
				zap.Error(err))
			return nil, err
		}

		changed := item.IsSelling() || item.Tag != snipe.Tag
		if changed {
			b.logger.Info("Item state changed during snipe",
				zap.Int64("item_id", item.ID),
				zap.String("tag", string(item.Tag)),
				zap.Int("num_available", item.NumAvailable),
				zap.Int("attempt", attempt+1))
		}

		if item.IsSelling() {
			if res := b.Hold(ctx, item); res != nil {
				if attempt == max-1 {
					b.logger.Warn("Snipe succeeded on final attempt, widening budget",
						zap.Int64("item_id", item.ID),
						zap.Int("attempts", max))
					b.widenSnipeBudget()
				}
				return res, nil
			}
		}
		if changed {
			b.logger.Error("Unexpected item state during snipe",
				zap.Int64("item_id", item.ID),
				zap.String("tag", string(item.Tag)))
			return nil, nil
		}
	}

	b.logger.Warn("Item unchanged after snipe attempts",
		zap.Int64("item_id", snipe.ID),
		zap.String("name", snipe.Name),
		zap.Int("attempts", max))
	return nil, nil
}

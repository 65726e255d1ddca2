package bot

import (
	"context"
	"errors"
	"fmt"

	"bag-sniper/core/sched"
	"bag-sniper/feature/history"
	"bag-sniper/feature/market"

	"go.uber.org/zap"
)

// Hold reserves the item's maximum allowed quantity and schedules a catch
// at the reservation's expiry. It returns nil when the reservation was
// refused for a business reason; transient failures are retried first.
func (b *Bot) Hold(ctx context.Context, item *market.Item) *market.Reservation {
	res, err := withRetry(ctx, b.logger, b.cfg, func() (*market.Reservation, error) {
		return b.client.Reserve(ctx, item.ID, item.MaxQuantity())
	})
	if err != nil {
		b.logger.Error("Reservation failed",
			zap.Int64("item_id", item.ID),
			zap.String("name", item.Name),
			zap.Error(err))
		if errors.Is(err, market.ErrLimitExceeded) {
			b.untrackItem(ctx, item.ID, item.Name)
		}
		return nil
	}

	b.logger.Info("Held item",
		zap.Int64("item_id", item.ID),
		zap.String("name", item.Name),
		zap.Int("quantity", res.Quantity),
		zap.String("total", res.TotalPrice.String()),
		zap.Time("expires_at", res.ExpiresAt()))
	b.notify(ctx, fmt.Sprintf("Held: %dx %s", res.Quantity, item.Name), "hourglass_flowing_sand")

	b.appendHeld(*res)
	b.record(ctx, history.KindHeld, res)
	b.scheduleCatch(*res)
	return res
}

// scheduleCatch arms the one-shot re-reservation for just past the hold's
// expiry. Reservation ids are unique, so a conflicting schedule means the
// hold ledger is corrupt.
func (b *Bot) scheduleCatch(res market.Reservation) {
	_, err := b.sched.AddSchedule(
		func(ctx context.Context) { b.Catch(ctx, res) },
		sched.NewDateTrigger(res.ExpiresAt().Add(b.cfg.CatchDelay)),
		fmt.Sprintf("catch-reservation-%s", res.ID),
		sched.ErrorOnDuplicate,
	)
	if err != nil {
		b.logger.DPanic("Catch already scheduled for reservation",
			zap.String("reservation_id", res.ID),
			zap.Error(err))
	}
}

// Catch re-reserves the units of an expiring hold. The expired reservation
// leaves the held ledger exactly once, whether or not the replacement
// succeeds; a successful catch appends its own entry and schedules its own
// catch in turn.
func (b *Bot) Catch(ctx context.Context, held market.Reservation) {
	defer b.removeHeld(held.ItemID, held.ID)

	res, err := withRetry(ctx, b.logger, b.cfg, func() (*market.Reservation, error) {
		return b.client.Reserve(ctx, held.ItemID, held.Quantity)
	})
	if err != nil {
		switch {
		case errors.Is(err, market.ErrSaleClosed):
			b.logger.Warn("Sale closed before catch",
				zap.Int64("item_id", held.ItemID),
				zap.String("reservation_id", held.ID))
		case errors.Is(err, market.ErrLimitExceeded):
			b.untrackItem(ctx, held.ItemID, "")
		default:
			b.logger.Error("Catch failed",
				zap.Int64("item_id", held.ItemID),
				zap.String("reservation_id", held.ID),
				zap.Error(err))
		}
		b.record(ctx, history.KindExpired, &held)
		return
	}

	b.logger.Info("Caught expiring reservation",
		zap.Int64("item_id", held.ItemID),
		zap.String("old_reservation_id", held.ID),
		zap.String("new_reservation_id", res.ID),
		zap.Int("quantity", res.Quantity))

	b.appendHeld(*res)
	b.record(ctx, history.KindCaught, res)
	b.scheduleCatch(*res)
}

// Order reserves the item and immediately pays from voucher balance,
// returning the raw order record. When payment fails for lack of balance the
// reservation is aborted and downgraded to a plain hold.
func (b *Bot) Order(ctx context.Context, item *market.Item) (map[string]any, error) {
	return withRetry(ctx, b.logger, b.cfg, func() (map[string]any, error) {
		return b.orderOnce(ctx, item)
	})
}

func (b *Bot) orderOnce(ctx context.Context, item *market.Item) (map[string]any, error) {
	res, err := b.client.Reserve(ctx, item.ID, item.MaxQuantity())
	if err != nil {
		if market.IsRetryable(err) {
			return nil, err
		}
		b.logger.Error("Order reservation failed",
			zap.Int64("item_id", item.ID),
			zap.String("name", item.Name),
			zap.Error(err))
		if errors.Is(err, market.ErrLimitExceeded) {
			b.untrackItem(ctx, item.ID, item.Name)
		}
		return nil, nil
	}
	b.logger.Debug("Reserved for ordering",
		zap.Int64("item_id", item.ID),
		zap.String("reservation_id", res.ID),
		zap.String("total", res.TotalPrice.String()))

	if _, err := b.client.Pay(ctx, res); err != nil {
		var payErr *market.PaymentError
		if errors.As(err, &payErr) {
			b.logger.Warn("Cannot pay order, falling back to hold",
				zap.Int64("item_id", item.ID),
				zap.String("reservation_id", res.ID),
				zap.String("reason", payErr.Reason))
			if abortErr := b.client.AbortReservation(ctx, res.ID); abortErr != nil &&
				!errors.Is(abortErr, market.ErrAlreadyAborted) {
				b.logger.Error("Abort after failed payment failed",
					zap.String("reservation_id", res.ID),
					zap.Error(abortErr))
			}
			b.record(ctx, history.KindAborted, res)
			b.Hold(ctx, item)
			return nil, nil
		}
		if market.IsRetryable(err) {
			return nil, err
		}
		b.logger.Error("Payment failed",
			zap.Int64("item_id", item.ID),
			zap.String("reservation_id", res.ID),
			zap.Error(err))
		return nil, nil
	}

	order, err := b.client.GetOrder(ctx, res.ID)
	if err != nil {
		b.logger.Error("Fetching paid order failed",
			zap.String("order_id", res.ID),
			zap.Error(err))
		return nil, err
	}
	if sub, ok := order["order"].(map[string]any); ok {
		order = sub
	}

	b.logger.Info("Ordered item",
		zap.Int64("item_id", item.ID),
		zap.String("name", item.Name),
		zap.String("order_id", res.ID),
		zap.Int("quantity", res.Quantity),
		zap.String("total", res.TotalPrice.String()))
	b.record(ctx, history.KindOrdered, res)
	b.notify(ctx, fmt.Sprintf("Ordered: %dx %s for %s", res.Quantity, item.Name, res.TotalPrice.String()), "shopping_cart")
	return order, nil
}

// untrackItem stops following a listing after the marketplace signalled the
// account hit its purchase window limit; keeping it favorited would only
// produce refusals until the window rolls over.
func (b *Bot) untrackItem(ctx context.Context, itemID int64, name string) {
	if !b.dropTracked(itemID) {
		return
	}
	b.logger.Warn("Untracking item",
		zap.Int64("item_id", itemID),
		zap.String("name", name))
	if err := b.client.SetFavorite(ctx, itemID, false); err != nil {
		b.logger.Error("Removing favorite failed",
			zap.Int64("item_id", itemID),
			zap.Error(err))
	}
}

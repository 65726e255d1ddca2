package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bag-sniper/core/sched"
	"bag-sniper/feature/market"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckFavorites is the reconciliation tick. It pulls the favorites page,
// diffs every listing against last-seen state, reserves live stock and
// arms snipes for predicted drops. Per-item processing is fanned out;
// a failure on one listing never touches the others.
func (b *Bot) CheckFavorites(ctx context.Context) {
	faves, err := b.client.Favorites(ctx, b.currentPageSize())
	if err != nil {
		if errors.Is(err, market.ErrChallenge) {
			b.logger.Error("Upstream issued a bot challenge, stopping", zap.Error(err))
			b.notify(ctx, "Bot challenge received, shutting down", "rotating_light")
			b.sched.Stop()
			return
		}
		b.logger.Error("Fetching favorites failed", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, fave := range faves {
		fave := fave
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Panic while processing favorite",
						zap.Int64("item_id", fave.ID),
						zap.Any("panic", r),
						zap.Stack("stack"))
				}
			}()
			b.processFavorite(gctx, fave)
			return nil
		})
	}
	_ = g.Wait()

	b.adjustPageSize(len(faves))
}

// adjustPageSize keeps the requested page size at the smallest multiple of
// the granularity that fits every favorite in one page, so the common case
// stays a single request.
func (b *Bot) adjustPageSize(count int) {
	gran := b.cfg.DefaultPageSize
	if gran <= 0 {
		gran = 25
	}
	pages := (count + gran - 1) / gran
	if pages < 1 {
		pages = 1
	}
	size := pages * gran

	b.mu.Lock()
	defer b.mu.Unlock()
	if size != b.pageSize {
		b.logger.Debug("Adjusting favorites page size",
			zap.Int("favorites", count),
			zap.Int("old", b.pageSize),
			zap.Int("new", size))
		b.pageSize = size
	}
}

func (b *Bot) processFavorite(ctx context.Context, fave *market.Favorite) {
	old, tracked := b.trackedLookup(fave.ID)

	switch {
	case !tracked:
		b.setTracked(fave)
		if fave.IsInteresting() || !b.isInactive(fave.ID) {
			b.logger.Warn("Unknown favorite",
				zap.Int64("item_id", fave.ID),
				zap.String("name", fave.Name),
				zap.String("tag", string(fave.Tag)),
				zap.Int("num_available", fave.NumAvailable))
		}
	case old == nil:
		b.setTracked(fave)
		if fave.IsInteresting() && !b.isIgnored(fave.ID) {
			b.logger.Info("Favorite seen",
				zap.Int64("item_id", fave.ID),
				zap.String("name", fave.Name),
				zap.String("tag", string(fave.Tag)),
				zap.Int("num_available", fave.NumAvailable))
		}
	default:
		if fave.Equal(old) {
			return
		}
		held := b.heldFor(fave.ID)
		if b.isReservationEcho(old, fave, held) || b.isSoldOutFlap(old, fave, held) {
			return
		}
		b.setTracked(fave)

		changeLog := b.logger.Info
		if b.isIgnored(fave.ID) || isExpectedAfterReservation(old, fave, held) {
			changeLog = b.logger.Debug
		}
		changeLog("Favorite changed",
			zap.Int64("item_id", fave.ID),
			zap.String("name", fave.Name),
			zap.Strings("changes", fave.Diff(old)))
	}

	if b.isIgnored(fave.ID) {
		return
	}

	var item *market.Item
	if fave.IsSelling() {
		item = b.drainStock(ctx, fave)
	}
	b.maybeScheduleSnipe(ctx, fave, item)
}

// isReservationEcho suppresses the transition where the upstream briefly
// reports our own held units as fresh stock: a sold-out listing flips to
// selling with exactly the quantity of one of our reservations.
func (b *Bot) isReservationEcho(old, fresh *market.Favorite, held []market.Reservation) bool {
	if old.Tag != market.TagSoldOut || !fresh.IsSelling() {
		return false
	}
	for _, r := range held {
		if r.Quantity == fresh.NumAvailable {
			return true
		}
	}
	return false
}

// isSoldOutFlap suppresses a stale sold-out timestamp: the listing is still
// sold out but reports a sell-out instant older than our newest hold, which
// can only be a lagging cache.
func (b *Bot) isSoldOutFlap(old, fresh *market.Favorite, held []market.Reservation) bool {
	if old.Tag != market.TagSoldOut || fresh.Tag != market.TagSoldOut || fresh.SoldOutAt == nil {
		return false
	}
	if len(held) == 0 {
		return false
	}
	last := held[len(held)-1]
	return fresh.SoldOutAt.Before(roundMinute(last.ReservedAt))
}

// isExpectedAfterReservation reports whether a transition to sold out is the
// ordinary consequence of one of our own reservations: the sell-out instant
// matches a hold's reservation time, and the prior state either already was
// sold out or showed exactly that hold's quantity.
func isExpectedAfterReservation(old, fresh *market.Favorite, held []market.Reservation) bool {
	if fresh.Tag != market.TagSoldOut || fresh.SoldOutAt == nil {
		return false
	}
	if !old.IsSelling() && old.Tag != market.TagCheckAgainLater && old.Tag != market.TagSoldOut {
		return false
	}
	for _, r := range held {
		if (old.Tag == market.TagSoldOut || old.NumAvailable == r.Quantity) &&
			fresh.SoldOutAt.Equal(roundMinute(r.ReservedAt)) {
			return true
		}
	}
	return false
}

// roundMinute rounds to the nearest minute, matching the granularity the
// upstream reports sell-out instants at.
func roundMinute(t time.Time) time.Time {
	return t.Round(time.Minute)
}

// drainStock holds the selling listing's stock until it is exhausted, the
// per-item reservation cap is reached, or a reservation comes back short.
// It returns the fetched item detail for snipe scheduling.
func (b *Bot) drainStock(ctx context.Context, fave *market.Favorite) *market.Item {
	item, err := b.fetch.Get(ctx, fave.ID)
	if err != nil {
		b.logger.Error("Fetching item detail failed",
			zap.Int64("item_id", fave.ID),
			zap.String("name", fave.Name),
			zap.Error(err))
		return nil
	}

	if item.NumAvailable != fave.NumAvailable {
		b.logger.Warn("Item detail disagrees with favorites page",
			zap.Int64("item_id", fave.ID),
			zap.String("name", fave.Name),
			zap.Strings("changes", item.AsFavorite().Diff(fave)))
	}

	for item.NumAvailable > 0 && b.heldCount(item.ID) < b.cfg.MaxReservations {
		res := b.Hold(ctx, item)
		if res == nil {
			break
		}
		maxQ := item.MaxQuantity()
		// A short grant means the upstream knows better than our count.
		if res.Quantity != maxQ || maxQ >= item.NumAvailable {
			break
		}
		item.NumAvailable -= res.Quantity
	}
	return item
}

// maybeScheduleSnipe reconciles the scheduled-snipes registry with the
// listing's tag. "Check again later" promises a drop; "Nothing today" on an
// active listing is worth a speculative schedule; anything else lets an
// existing undated entry age out.
func (b *Bot) maybeScheduleSnipe(ctx context.Context, fave *market.Favorite, item *market.Item) {
	entry, scheduled := b.snipeEntry(fave.ID)

	if fave.Tag != market.TagCheckAgainLater && scheduled && entry.nextDrop == nil {
		if _, err := b.deferSnipeCleanup(fave.ID, sched.Skip); err != nil {
			b.logger.Debug("Snipe cleanup scheduling skipped",
				zap.Int64("item_id", fave.ID), zap.Error(err))
		}
		return
	}

	fresh := !scheduled &&
		(fave.Tag == market.TagCheckAgainLater ||
			(fave.Tag == market.TagNothingToday && !b.isInactive(fave.ID)))
	upgraded := scheduled &&
		fave.Tag == market.TagCheckAgainLater &&
		entry.tag == market.TagNothingToday
	if !fresh && !upgraded {
		return
	}

	if item == nil {
		if !b.snipeFetchDelay(ctx) {
			return
		}
		var err error
		item, err = b.fetch.Get(ctx, fave.ID)
		if err != nil {
			b.logger.Error("Fetching item detail for snipe failed",
				zap.Int64("item_id", fave.ID),
				zap.String("name", fave.Name),
				zap.Error(err))
			return
		}
	}

	now := time.Now()
	if item.NextDrop != nil && item.NextDrop.After(now) {
		drop := *item.NextDrop
		_, err := b.sched.AddSchedule(
			func(ctx context.Context) {
				if _, err := b.Snipe(ctx, item); err != nil {
					b.logger.Error("Snipe failed",
						zap.Int64("item_id", item.ID), zap.Error(err))
				}
			},
			sched.NewDateTrigger(drop),
			fmt.Sprintf("snipe-item-%d", item.ID),
			sched.Replace,
		)
		if err != nil {
			b.logger.Error("Scheduling snipe failed",
				zap.Int64("item_id", item.ID), zap.Error(err))
			return
		}
		if scheduled && entry.nextDrop != nil && !entry.nextDrop.Equal(drop) {
			b.logger.Warn("Superseding scheduled snipe",
				zap.Int64("item_id", item.ID),
				zap.Time("old_drop", *entry.nextDrop),
				zap.Time("new_drop", drop))
		}
		b.logger.Info("Scheduled snipe",
			zap.Int64("item_id", item.ID),
			zap.String("name", item.Name),
			zap.Time("next_drop", drop))
	} else {
		b.logger.Debug("No upcoming drop to snipe",
			zap.Int64("item_id", item.ID),
			zap.String("name", item.Name))
	}

	b.setSnipeEntry(item.ID, scheduledSnipe{tag: item.Tag, nextDrop: item.NextDrop})
}

// snipeFetchDelay sleeps a random fraction of the configured maximum before
// an item-detail fetch that is not time critical, so a fleet of pollers does
// not stampede the detail endpoint on the same tick. Returns false when the
// context ended during the wait.
func (b *Bot) snipeFetchDelay(ctx context.Context) bool {
	max := b.cfg.SnipeFetchMaxDelay
	if max <= 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(rand.Int63n(int64(max))))
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

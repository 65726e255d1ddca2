package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bag-sniper/core/sched"
	"bag-sniper/feature/history"
	"bag-sniper/feature/market"
	"bag-sniper/feature/notify"

	"go.uber.org/zap"
)

// Scheduler is the deferred-task runner the bot registers catch and snipe
// callbacks with. core/sched satisfies it.
type Scheduler interface {
	AddSchedule(task sched.Task, trigger sched.Trigger, id string, policy sched.ConflictPolicy) (string, error)
	Stop()
	WaitUntilStopped(ctx context.Context) error
}

// scheduledSnipe remembers what a snipe was scheduled against, so later
// ticks can tell whether fresher data supersedes, cancels, or confirms it.
type scheduledSnipe struct {
	tag      market.Tag
	nextDrop *time.Time
}

// Bot owns the tracked-items, held-items and scheduled-snipes state and
// drives reconciliation, the reservation lifecycle and snipe scheduling
// against the marketplace gateway.
//
// All maps are guarded by mu. Per item id there is a single logical writer:
// the favorites feed yields each item at most once per tick, and catch and
// snipe callbacks touch only their own item's entries.
type Bot struct {
	client   market.Client
	sched    Scheduler
	notifier notify.Publisher
	history  *history.Store
	logger   *zap.Logger
	cfg      Config

	fetch *itemFetcher

	ignored  map[int64]struct{}
	inactive map[int64]struct{}

	mu               sync.Mutex
	tracked          map[int64]*market.Favorite
	held             map[int64][]market.Reservation
	snipes           map[int64]scheduledSnipe
	pageSize         int
	snipeMaxAttempts int
}

// New creates a bot. hist may be nil to run without an audit trail.
func New(client market.Client, scheduler Scheduler, notifier notify.Publisher, hist *history.Store, logger *zap.Logger, cfg Config) *Bot {
	b := &Bot{
		client:           client,
		sched:            scheduler,
		notifier:         notifier,
		history:          hist,
		logger:           logger,
		cfg:              cfg,
		fetch:            newItemFetcher(client),
		ignored:          idSet(cfg.IgnoredItemIDs()),
		inactive:         idSet(cfg.InactiveItemIDs()),
		tracked:          make(map[int64]*market.Favorite),
		held:             make(map[int64][]market.Reservation),
		snipes:           make(map[int64]scheduledSnipe),
		pageSize:         cfg.DefaultPageSize,
		snipeMaxAttempts: cfg.SnipeMaxAttempts,
	}
	for _, id := range cfg.TrackedItemIDs() {
		b.tracked[id] = nil
	}
	for id := range b.ignored {
		b.tracked[id] = nil
	}
	return b
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (b *Bot) isIgnored(id int64) bool {
	_, ok := b.ignored[id]
	return ok
}

func (b *Bot) isInactive(id int64) bool {
	_, ok := b.inactive[id]
	return ok
}

// trackedLookup returns the last-seen state and whether the item is tracked
// at all (a tracked item may have no observed state yet).
func (b *Bot) trackedLookup(id int64) (*market.Favorite, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	old, ok := b.tracked[id]
	return old, ok
}

func (b *Bot) setTracked(f *market.Favorite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tracked[f.ID] = f
}

func (b *Bot) dropTracked(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tracked[id]; !ok {
		return false
	}
	delete(b.tracked, id)
	return true
}

// heldFor returns a copy of the item's held reservations, oldest first.
func (b *Bot) heldFor(id int64) []market.Reservation {
	b.mu.Lock()
	defer b.mu.Unlock()
	held := b.held[id]
	out := make([]market.Reservation, len(held))
	copy(out, held)
	return out
}

func (b *Bot) heldCount(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.held[id])
}

func (b *Bot) appendHeld(r market.Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held[r.ItemID] = append(b.held[r.ItemID], r)
}

// removeHeld removes the reservation from its item's sequence. For every
// append there is exactly one removal; a miss means the balance invariant
// was already broken somewhere else.
func (b *Bot) removeHeld(itemID int64, reservationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	held := b.held[itemID]
	for i, r := range held {
		if r.ID == reservationID {
			b.held[itemID] = append(held[:i], held[i+1:]...)
			if len(b.held[itemID]) == 0 {
				delete(b.held, itemID)
			}
			return
		}
	}
	b.logger.DPanic("Removing unknown held reservation",
		zap.Int64("item_id", itemID),
		zap.String("reservation_id", reservationID))
}

func (b *Bot) snipeEntry(id int64) (scheduledSnipe, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.snipes[id]
	return entry, ok
}

func (b *Bot) setSnipeEntry(id int64, entry scheduledSnipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snipes[id] = entry
}

func (b *Bot) deleteSnipeEntry(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snipes, id)
}

func (b *Bot) currentPageSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pageSize
}

func (b *Bot) snipeBudget() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snipeMaxAttempts
}

func (b *Bot) widenSnipeBudget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snipeMaxAttempts++
}

// notify publishes fire-and-forget; delivery failures are logged only.
func (b *Bot) notify(ctx context.Context, message, tag string) {
	if err := b.notifier.Publish(ctx, message, tag); err != nil {
		b.logger.Warn("Notification failed", zap.String("message", message), zap.Error(err))
	}
}

// record appends a lifecycle event to the audit trail, when one is wired.
func (b *Bot) record(ctx context.Context, kind string, r *market.Reservation) {
	if b.history == nil {
		return
	}
	b.history.Record(ctx, history.Event{
		ItemID:          r.ItemID,
		ReservationID:   r.ID,
		Kind:            kind,
		Quantity:        r.Quantity,
		PriceMinorUnits: r.TotalPrice.MinorUnits,
		Currency:        r.TotalPrice.Code,
	})
}

// deferSnipeCleanup schedules removal of the item's scheduled-snipe entry
// after the flap cooldown, so short-lived tag reversals do not immediately
// re-arm scheduling.
func (b *Bot) deferSnipeCleanup(itemID int64, policy sched.ConflictPolicy) (string, error) {
	return b.sched.AddSchedule(
		func(context.Context) { b.deleteSnipeEntry(itemID) },
		sched.NewDateTrigger(time.Now().Add(b.cfg.FlapCooldown)),
		fmt.Sprintf("del-scheduled-snipe-%d", itemID),
		policy,
	)
}

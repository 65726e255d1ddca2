package bot

import (
	"context"
	"sync"
	"time"

	"bag-sniper/core/sched"
	"bag-sniper/feature/market"
	"bag-sniper/feature/market/mocks"
	"bag-sniper/feature/notify"

	"go.uber.org/zap"
)

// fakeScheduler records schedule registrations instead of running them, so
// tests can assert on ids and fire tasks synchronously.
type fakeScheduler struct {
	mu      sync.Mutex
	adds    []scheduledCall
	failIDs map[string]error
	stopped bool
}

type scheduledCall struct {
	id      string
	policy  sched.ConflictPolicy
	task    sched.Task
	trigger sched.Trigger
}

func (f *fakeScheduler) AddSchedule(task sched.Task, trigger sched.Trigger, id string, policy sched.ConflictPolicy) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failIDs[id]; err != nil {
		return "", err
	}
	f.adds = append(f.adds, scheduledCall{id: id, policy: policy, task: task, trigger: trigger})
	return id, nil
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeScheduler) WaitUntilStopped(ctx context.Context) error {
	return ctx.Err()
}

func (f *fakeScheduler) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeScheduler) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.adds))
	for i, c := range f.adds {
		ids[i] = c.id
	}
	return ids
}

func (f *fakeScheduler) find(id string) (scheduledCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.adds {
		if c.id == id {
			return c, true
		}
	}
	return scheduledCall{}, false
}

func testConfig() Config {
	return Config{
		PollInterval:       2 * time.Second,
		DefaultPageSize:    25,
		SnipeMaxAttempts:   3,
		MaxReservations:    2,
		FlapCooldown:       2 * time.Minute,
		CatchDelay:         time.Second,
		SnipeFetchMaxDelay: 0, // no artificial delay in tests
		RetryAttempts:      3,
		RetryBackoff:       time.Millisecond,
	}
}

func newTestBot(client market.Client, cfg Config) (*Bot, *fakeScheduler) {
	fs := &fakeScheduler{}
	return New(client, fs, notify.NopPublisher{}, nil, zap.NewNop(), cfg), fs
}

func sellingFavorite(id int64, available int) *market.Favorite {
	return &market.Favorite{
		ID:           id,
		Name:         "Bakery - Downtown (Surprise Bag)",
		Tag:          market.TagXItemsLeft,
		NumAvailable: available,
	}
}

func sellingItem(id int64, available, limit int) *market.Item {
	return &market.Item{
		Favorite:      *sellingFavorite(id, available),
		PurchaseLimit: limit,
	}
}

func reservation(id string, itemID int64, quantity int) *market.Reservation {
	return &market.Reservation{
		ID:       id,
		ItemID:   itemID,
		Quantity: quantity,
		TotalPrice: market.Price{
			Code: "EUR", MinorUnits: int64(quantity) * 599, Decimals: 2,
		},
		ReservedAt: time.Now(),
	}
}

func newMockClient() *mocks.Client {
	return new(mocks.Client)
}

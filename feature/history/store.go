// Package history persists the bot's reservation and order outcomes so a
// session's activity survives restarts and can be inspected later.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event kinds, one per terminal or bookkeeping outcome in the reservation
// lifecycle.
const (
	KindHeld    = "held"
	KindCaught  = "caught"
	KindOrdered = "ordered"
	KindAborted = "aborted"
	KindExpired = "expired"
)

// Event is one recorded lifecycle outcome.
type Event struct {
	ID              uint   `gorm:"primaryKey"`
	ItemID          int64  `gorm:"index"`
	ReservationID   string `gorm:"size:64"`
	Kind            string `gorm:"size:16;index"`
	Quantity        int
	PriceMinorUnits int64
	Currency        string `gorm:"size:8"`
	CreatedAt       time.Time
}

// Store records lifecycle events. Writes are best-effort: a failing store
// must never stall a reservation path.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a store over an open database.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the backing table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Event{})
}

// Record appends an event. Failures are logged and swallowed.
func (s *Store) Record(ctx context.Context, e Event) {
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		s.logger.Warn("Recording history event failed",
			zap.String("kind", e.Kind),
			zap.Int64("item_id", e.ItemID),
			zap.Error(err))
	}
}

// Recent returns the latest events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	var events []Event
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

package bot

import "time"

// Snapshot is a point-in-time copy of the bot's state, served by the
// introspection endpoint.
type Snapshot struct {
	Tracked  []TrackedItem     `json:"tracked"`
	Held     []HeldReservation `json:"held"`
	Snipes   []PendingSnipe    `json:"snipes"`
	PageSize int               `json:"page_size"`
	Budget   int               `json:"snipe_max_attempts"`
}

// TrackedItem is one followed listing and its last-seen state.
type TrackedItem struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name,omitempty"`
	Tag          string     `json:"tag,omitempty"`
	NumAvailable int        `json:"num_available"`
	SoldOutAt    *time.Time `json:"sold_out_at,omitempty"`
}

// HeldReservation is one live hold.
type HeldReservation struct {
	ReservationID string    `json:"reservation_id"`
	ItemID        int64     `json:"item_id"`
	Quantity      int       `json:"quantity"`
	Total         string    `json:"total"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// PendingSnipe is one scheduled-snipes registry entry.
type PendingSnipe struct {
	ItemID   int64      `json:"item_id"`
	Tag      string     `json:"tag,omitempty"`
	NextDrop *time.Time `json:"next_drop,omitempty"`
}

// State returns the current snapshot. It satisfies the status server's
// source contract.
func (b *Bot) State() any {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Tracked:  make([]TrackedItem, 0, len(b.tracked)),
		Held:     []HeldReservation{},
		Snipes:   make([]PendingSnipe, 0, len(b.snipes)),
		PageSize: b.pageSize,
		Budget:   b.snipeMaxAttempts,
	}
	for id, fave := range b.tracked {
		item := TrackedItem{ID: id}
		if fave != nil {
			item.Name = fave.Name
			item.Tag = string(fave.Tag)
			item.NumAvailable = fave.NumAvailable
			item.SoldOutAt = fave.SoldOutAt
		}
		snap.Tracked = append(snap.Tracked, item)
	}
	for _, held := range b.held {
		for _, r := range held {
			snap.Held = append(snap.Held, HeldReservation{
				ReservationID: r.ID,
				ItemID:        r.ItemID,
				Quantity:      r.Quantity,
				Total:         r.TotalPrice.String(),
				ExpiresAt:     r.ExpiresAt(),
			})
		}
	}
	for id, entry := range b.snipes {
		snap.Snipes = append(snap.Snipes, PendingSnipe{
			ItemID:   id,
			Tag:      string(entry.tag),
			NextDrop: entry.nextDrop,
		})
	}
	return snap
}

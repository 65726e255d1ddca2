package bot

import (
	"strconv"
	"strings"
	"time"
)

// Config holds the bot's scheduling constants and item lists. All timing
// knobs that tune the reconciliation loop live here rather than as
// package-level state.
type Config struct {
	// PollInterval is the fixed rate of the favorites check tick.
	PollInterval time.Duration `mapstructure:"poll_interval" default:"2s"`
	// DefaultPageSize is the favorites page-size granularity; the engine
	// adapts the requested size in multiples of it.
	DefaultPageSize int `mapstructure:"page_size" default:"25"`
	// SnipeMaxAttempts is the starting attempt budget per snipe.
	SnipeMaxAttempts int `mapstructure:"snipe_max_attempts" default:"5"`
	// MaxReservations caps concurrent held reservations per item.
	MaxReservations int `mapstructure:"max_reservations" default:"2"`
	// FlapCooldown is how long a scheduled-snipe registry entry survives
	// after its tag stops indicating a pending drop, so tag flapping does
	// not immediately re-trigger scheduling.
	FlapCooldown time.Duration `mapstructure:"flap_cooldown" default:"2m"`
	// CatchDelay is the buffer past a reservation's expiry before the
	// catch re-reservation fires.
	CatchDelay time.Duration `mapstructure:"catch_delay" default:"1s"`
	// SnipeFetchMaxDelay bounds the randomized wait before fetching item
	// detail for snipe scheduling, spreading load across pollers.
	SnipeFetchMaxDelay time.Duration `mapstructure:"snipe_fetch_max_delay" default:"2m"`
	// RetryAttempts and RetryBackoff shape the transient-failure retry
	// around each hold/catch/order operation.
	RetryAttempts int           `mapstructure:"retry_attempts" default:"3"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" default:"500ms"`

	// TrackedItems seeds the tracked map so known listings are diffed from
	// the first tick. Comma-separated item ids.
	TrackedItems string `mapstructure:"tracked_items" default:""`
	// IgnoredItems are tracked but logged at debug and never held or sniped.
	IgnoredItems string `mapstructure:"ignored_items" default:""`
	// InactiveItems are listings known to be permanently dormant; they are
	// not worth nothing-today snipes or unknown-favorite warnings.
	InactiveItems string `mapstructure:"inactive_items" default:""`
}

// TrackedItemIDs parses the tracked-items list.
func (c Config) TrackedItemIDs() []int64 { return parseIDList(c.TrackedItems) }

// IgnoredItemIDs parses the ignored-items list.
func (c Config) IgnoredItemIDs() []int64 { return parseIDList(c.IgnoredItems) }

// InactiveItemIDs parses the inactive-items list.
func (c Config) InactiveItemIDs() []int64 { return parseIDList(c.InactiveItems) }

func parseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

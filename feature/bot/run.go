package bot

import (
	"context"

	"bag-sniper/core/sched"
)

// Run arms the recurring favorites check and blocks until the scheduler
// stops, either through ctx or a fatal condition such as a bot challenge.
func (b *Bot) Run(ctx context.Context) error {
	_, err := b.sched.AddSchedule(
		b.CheckFavorites,
		sched.NewIntervalTrigger(b.cfg.PollInterval),
		"check-favorites",
		sched.ErrorOnDuplicate,
	)
	if err != nil {
		return err
	}
	return b.sched.WaitUntilStopped(ctx)
}

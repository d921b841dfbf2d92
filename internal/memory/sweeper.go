package memory

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// sweepSchedule runs the expiry pass every ten minutes. Standard 5-field
// cron format: minute hour day-of-month month day-of-week.
const sweepSchedule = "*/10 * * * *"

// Sweeper deletes sessions idle past the configured window on a cron
// schedule.
type Sweeper struct {
	cron  *cron.Cron
	store *Store
	idle  time.Duration
}

// NewSweeper creates a sweeper over the store. idle is the inactivity
// window after which a session expires.
func NewSweeper(store *Store, idle time.Duration) *Sweeper {
	return &Sweeper{cron: cron.New(), store: store, idle: idle}
}

// Start registers the sweep entry and starts the cron loop.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(sweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if _, err := s.store.ExpireIdle(ctx, s.idle); err != nil {
			log.Error().Err(err).Msg("session_sweep_failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

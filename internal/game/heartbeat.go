package game

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// LIVENESS
// =============================================================================

func (c *Coordinator) handleHeartbeat(ev heartbeatEvent) {
	// lastSeen was already refreshed by touch; a heartbeat from an unbound
	// connection is harmless and ignored.
	if _, err := c.bound(ev.client, ev.sessionID); err != nil {
		log.Debug().Uint64("client", ev.client.id).Str("session", ev.sessionID).Msg("[HandleHeartbeat] heartbeat from unbound connection")
	}
}

// startSweeper schedules the periodic liveness sweep. A zero interval
// disables it.
func (c *Coordinator) startSweeper() error {
	if c.opts.SweepInterval <= 0 {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(c.opts.SweepInterval),
		gocron.NewTask(func() {
			c.post(sweepEvent{at: c.opts.Now()})
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.Start()
	c.sweeper = s
	return nil
}

// handleSweep evicts sessions that stopped talking and queue entries whose
// connection is gone.
func (c *Coordinator) handleSweep(ev sweepEvent) {
	cutoff := ev.at.Add(-c.opts.HeartbeatTimeout)

	for _, s := range c.registry.all() {
		if c.registry.get(s.id) != s {
			continue
		}
		switch {
		case !s.client.Alive():
			c.teardown(s.id, "connection lost")
		case s.lastSeen.Before(cutoff):
			log.Info().Str("session", s.id).Time("last_seen", s.lastSeen).Msg("[HandleSweep] heartbeat expired")
			s.client.Close("heartbeat timeout")
			c.teardown(s.id, "heartbeat timeout")
		}
	}
	c.sweepQueue()
}

package game

import (
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/utils"
)

// =============================================================================
// JOIN / LEAVE
// =============================================================================

func (c *Coordinator) handleJoin(ev joinEvent) {
	id := ev.sessionID

	if err := utils.ValidateSessionID(id); err != nil {
		log.Warn().Err(err).Uint64("client", ev.client.id).Msg("[HandleJoin] rejecting session id")
		ev.client.sendError(ErrInvalidSession, "Invalid session id.")
		ev.client.Close("invalid session")
		return
	}

	var carriedPartner string
	if prev := c.registry.byConn(ev.client); prev != nil {
		if prev.id == id {
			ev.client.sendError(ErrInvalidSession, "Already joined.")
			return
		}
		log.Info().Str("session", prev.id).Str("new_session", id).Msg("[HandleJoin] connection rejoining under a new id")
		carriedPartner = prev.lastPartner
		if dropped := c.teardown(prev.id, "rejoin"); dropped != "" {
			carriedPartner = dropped
		}
	}

	if existing := c.registry.get(id); existing != nil {
		log.Warn().Str("session", id).Uint64("old_client", existing.client.id).Uint64("client", ev.client.id).Msg("[HandleJoin] session superseded by a new connection")
		if existing.client.Alive() {
			existing.client.sendError(ErrDuplicateSession, "Session opened on another connection.")
			existing.client.Close("duplicate session")
		}
		c.teardown(id, "superseded")
	}

	c.sweepQueue()

	s := newSession(c.ctx, id, ev.client, c.opts.Now())
	s.lastPartner = carriedPartner
	c.registry.add(s)
	log.Info().Str("session", id).Uint64("client", ev.client.id).Int("sessions", c.registry.len()).Msg("[HandleJoin] session registered")

	c.ensureUser(id)
	c.enqueue(s)
}

func (c *Coordinator) handleLeave(ev leaveEvent) {
	s, err := c.bound(ev.client, ev.sessionID)
	if err != nil {
		ev.client.sendError(err, "Not joined as that session.")
		return
	}
	c.teardown(s.id, "leave")
	ev.client.sendMessage(internal.TypeLeft, internal.LeftData{SessionID: s.id})
}

func (c *Coordinator) handleDisconnect(ev disconnectEvent) {
	s := c.registry.byConn(ev.client)
	if s == nil {
		return
	}
	c.teardown(s.id, "disconnect")
}

// =============================================================================
// MATCHMAKING
// =============================================================================

// enqueue pairs s with the oldest eligible waiting session, or parks it in
// the queue until a human arrives or the fallback fires.
func (c *Coordinator) enqueue(s *session) {
	s.phase = internal.PhaseWaiting

	// Prefer someone new; the last partner is still better than waiting.
	partnerID, ok := c.queue.popFirst(func(cand string) bool {
		return c.eligible(s, cand) && !c.recentlyPaired(s, cand)
	})
	if !ok {
		partnerID, ok = c.queue.popFirst(func(cand string) bool { return c.eligible(s, cand) })
	}
	if ok {
		c.timers.cancel(timerFallback, partnerID)
		c.pairHumans(s, c.registry.get(partnerID))
		return
	}

	if c.opts.FallbackPolicy == FallbackByChance && c.opts.Random() < c.opts.FallbackChance {
		c.pairAutomated(s)
		return
	}

	c.park(s)
}

func (c *Coordinator) park(s *session) {
	s.phase = internal.PhaseWaiting
	c.queue.push(s.id)
	c.timers.arm(timerFallback, s.id, c.opts.FallbackDelay)
	log.Debug().Str("session", s.id).Int("waiting", c.queue.len()).Msg("[Enqueue] waiting for a partner")
}

// eligible excludes s itself and dead connections.
func (c *Coordinator) eligible(s *session, candidate string) bool {
	if candidate == s.id {
		return false
	}
	cs := c.registry.get(candidate)
	return cs != nil && cs.client.Alive()
}

// recentlyPaired reports whether s and candidate were each other's last
// partner, in either direction.
func (c *Coordinator) recentlyPaired(s *session, candidate string) bool {
	if candidate == s.lastPartner {
		return true
	}
	cs := c.registry.get(candidate)
	return cs != nil && cs.lastPartner == s.id
}

// pairHumans matches the joiner with a session popped from the queue.
// matched goes to the joiner first.
func (c *Coordinator) pairHumans(joiner, popped *session) {
	p := newPairing(c.opts.NewPairingID(), joiner.id, popped.id, true, c.opts.Now())
	if err := c.table.pair(p); err != nil {
		log.Error().Err(err).Str("session", joiner.id).Str("partner", popped.id).Msg("[PairHumans] pairing abandoned")
		for _, s := range []*session{joiner, popped} {
			if _, paired := c.table.partnerOf(s.id); !paired {
				c.park(s)
			}
		}
		return
	}

	joiner.phase = internal.PhasePairedHuman
	popped.phase = internal.PhasePairedHuman
	joiner.client.sendMessage(internal.TypeMatched, internal.MatchedData{PartnerID: popped.id, IsHuman: true})
	popped.client.sendMessage(internal.TypeMatched, internal.MatchedData{PartnerID: joiner.id, IsHuman: true})
	c.timers.arm(timerConversation, p.id, c.opts.ConversationDuration)

	log.Info().Str("session", joiner.id).Str("partner", popped.id).Str("pairing", p.id).Msg("[PairHumans] matched")
}

func (c *Coordinator) pairAutomated(s *session) {
	automatedID := c.opts.NewAutomatedID()
	p := newPairing(c.opts.NewPairingID(), s.id, automatedID, false, c.opts.Now())
	if err := c.table.pair(p); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("[PairAutomated] pairing abandoned")
		return
	}

	s.phase = internal.PhasePairedAutomated
	s.client.sendMessage(internal.TypeMatched, internal.MatchedData{PartnerID: automatedID, IsHuman: false})
	c.timers.arm(timerConversation, p.id, c.opts.ConversationDuration)

	log.Info().Str("session", s.id).Str("partner", automatedID).Str("pairing", p.id).Msg("[PairAutomated] matched with automated partner")
}

func (c *Coordinator) onFallback(sessionID string) {
	s := c.registry.get(sessionID)
	if s == nil || !c.queue.remove(sessionID) {
		return
	}
	if !s.client.Alive() {
		c.teardown(sessionID, "connection lost")
		return
	}
	log.Debug().Str("session", sessionID).Msg("[OnFallback] no human arrived in time")
	c.pairAutomated(s)
}

// sweepQueue tears down queued sessions whose connection has gone away.
func (c *Coordinator) sweepQueue() {
	for _, id := range c.queue.snapshot() {
		s := c.registry.get(id)
		if s == nil {
			c.queue.remove(id)
			c.timers.cancel(timerFallback, id)
			continue
		}
		if !s.client.Alive() {
			c.teardown(id, "stale queue entry")
		}
	}
}

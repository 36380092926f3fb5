package game

import (
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
)

// teardown is the single cleanup path for a session leaving the system. It
// notifies a live human partner, clears every table entry and timer owned by
// the session, and finally sends the surviving partner back to matchmaking.
// A second call for the same id is a no-op. It returns the dropped partner.
func (c *Coordinator) teardown(sessionID, reason string) string {
	s := c.registry.get(sessionID)
	if s == nil {
		return ""
	}

	var partnerID string
	var survivor *session
	if p := c.table.unpair(sessionID); p != nil {
		partnerID = p.other(sessionID)
		c.timers.cancelPairing(p.id)
		if p.human {
			survivor = c.registry.get(partnerID)
		}
		if survivor != nil && survivor.client.Alive() {
			survivor.client.sendMessage(internal.TypePartnerDisconnected, struct{}{})
		}
	}

	c.queue.remove(sessionID)
	c.timers.cancel(timerFallback, sessionID)
	s.cancel()
	c.registry.remove(sessionID)

	log.Info().Str("session", sessionID).Str("partner", partnerID).Str("reason", reason).Int("sessions", c.registry.len()).Msg("[Teardown] session removed")

	if survivor != nil {
		survivor.lastPartner = sessionID
		if survivor.client.Alive() {
			c.enqueue(survivor)
		} else {
			c.teardown(survivor.id, "connection lost")
		}
	}
	return partnerID
}

// settle dissolves a finished pairing and returns its members to matchmaking.
func (c *Coordinator) settle(p *pairing) {
	c.timers.cancelPairing(p.id)
	c.table.unpair(p.members[0])

	members := make([]*session, 0, 2)
	for _, m := range p.humans() {
		if s := c.registry.get(m); s != nil {
			s.lastPartner = p.other(m)
			members = append(members, s)
		}
	}
	log.Info().Str("pairing", p.id).Strs("members", p.members[:]).Msg("[Settle] pairing finished")

	for _, s := range members {
		if !s.client.Alive() {
			c.teardown(s.id, "connection lost")
			continue
		}
		c.enqueue(s)
	}
}

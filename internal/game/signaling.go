package game

import (
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
)

// handlePeerHandle forwards an opaque peer handle to the partner of an
// unlocked pairing. Anything else is ignored without an error.
func (c *Coordinator) handlePeerHandle(ev peerHandleEvent) {
	s, err := c.bound(ev.client, ev.sessionID)
	if err != nil {
		return
	}
	s.peerHandle = ev.handle

	p := c.table.pairingOf(s.id)
	if p == nil || !p.unlocked || p.other(s.id) != ev.partnerID {
		log.Debug().Str("session", s.id).Str("partner", ev.partnerID).Msg("[HandlePeerHandle] ignored")
		return
	}
	partner := c.registry.get(ev.partnerID)
	if partner == nil || !partner.client.Alive() {
		return
	}
	partner.client.sendMessage(internal.TypeReceivePeerHandle, internal.ReceivePeerHandleData{
		Handle:        ev.handle,
		FromSessionID: s.id,
	})
}

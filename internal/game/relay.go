package game

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
)

// =============================================================================
// MESSAGE RELAY
// =============================================================================

// handleMessage echoes the turn to its sender, then forwards it to the human
// partner or asks the generator for the automated partner's reply.
func (c *Coordinator) handleMessage(ev messageEvent) {
	s, err := c.bound(ev.client, ev.sessionID)
	if err != nil {
		ev.client.sendError(err, "Join before sending messages.")
		return
	}
	if strings.TrimSpace(ev.text) == "" {
		return
	}
	if len(ev.text) > c.opts.MaxMessageLength {
		s.client.sendError(ErrBadRequest, "Message too long.")
		return
	}

	p := c.table.pairingOf(s.id)
	if p == nil {
		s.client.sendError(ErrNoPartner, "No partner assigned. Please rejoin.")
		return
	}
	if p.hasGuessed(s.id) && !p.unlocked {
		s.client.sendError(ErrStalePartnership, "You already guessed. Wait for your next partner.")
		return
	}
	partnerID := p.other(s.id)

	s.client.sendMessage(internal.TypeMessage, internal.OutboundChatData{Sender: s.id, Text: ev.text})

	if !p.human {
		c.requestReply(s, p, partnerID, ev.text)
		return
	}

	ps := c.registry.get(partnerID)
	if ps == nil || !ps.client.Alive() ||
		!ps.client.sendMessage(internal.TypeMessage, internal.OutboundChatData{Sender: s.id, Text: ev.text}) {
		log.Warn().Err(ErrPartnerUnreachable).Str("session", s.id).Str("partner", partnerID).Msg("[HandleMessage] dropping unreachable partner")
		c.dropUnreachable(s, p, ps)
	}
}

// dropUnreachable tears down a partner that can no longer be written to.
// The sender is told and goes back to matchmaking through the teardown.
func (c *Coordinator) dropUnreachable(sender *session, p *pairing, partner *session) {
	if partner != nil {
		c.teardown(partner.id, "unreachable")
		return
	}
	c.table.unpair(sender.id)
	c.timers.cancelPairing(p.id)
	sender.lastPartner = p.other(sender.id)
	sender.client.sendMessage(internal.TypePartnerDisconnected, struct{}{})
	c.enqueue(sender)
}

// requestReply calls the generator off the loop. The reply comes back as a
// replyReady event and is only delivered if the pairing still exists.
func (c *Coordinator) requestReply(s *session, p *pairing, automatedID, prompt string) {
	sessionCtx := s.ctx
	client := s.client
	sessionID := s.id
	pairingID := p.id
	timeout := c.opts.GenerationTimeout

	c.spawn(func() {
		ctx, cancel := context.WithTimeout(sessionCtx, timeout)
		defer cancel()

		reply, err := c.gen.Generate(ctx, prompt)
		if err != nil {
			if sessionCtx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("session", sessionID).Bool("timeout", errors.Is(err, context.DeadlineExceeded)).Msg("[RequestReply] generation failed")
			reply = FallbackReply
		}

		c.post(replyReady{
			client:      client,
			sessionID:   sessionID,
			pairingID:   pairingID,
			automatedID: automatedID,
			text:        reply,
		})
	})
}

func (c *Coordinator) handleReply(ev replyReady) {
	s := c.registry.get(ev.sessionID)
	if s == nil || s.client != ev.client {
		log.Debug().Str("session", ev.sessionID).Msg("[HandleReply] session gone, reply discarded")
		return
	}
	if p := c.table.pairingOf(s.id); p == nil || p.id != ev.pairingID {
		log.Debug().Str("session", ev.sessionID).Str("pairing", ev.pairingID).Msg("[HandleReply] pairing over, reply discarded")
		return
	}
	s.client.sendMessage(internal.TypeMessage, internal.OutboundChatData{Sender: ev.automatedID, Text: ev.text})
}

package game

import (
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/utils"
)

// =============================================================================
// GUESS EVALUATION
// =============================================================================

func (c *Coordinator) handleGuess(ev guessEvent) {
	s, err := c.bound(ev.client, ev.sessionID)
	if err != nil {
		ev.client.sendError(err, "Join before guessing.")
		return
	}

	p := c.table.pairingOf(s.id)
	if p == nil {
		s.client.sendError(ErrNoPartner, "No partner assigned. Please rejoin.")
		return
	}
	partnerID := p.other(s.id)
	if ev.partnerID != partnerID || p.hasGuessed(s.id) {
		log.Info().Str("session", s.id).Str("claimed", ev.partnerID).Str("partner", partnerID).Msg("[HandleGuess] stale guess rejected")
		s.client.sendError(ErrStalePartnership, "That conversation is over.")
		return
	}

	isHuman := !utils.IsAutomatedID(partnerID)
	correct := ev.guess == isHuman
	p.guesses[s.id] = correct

	s.client.sendMessage(internal.TypeGuessResult, internal.GuessResultData{
		PartnerID:      partnerID,
		IsCorrect:      correct,
		IsPartnerHuman: isHuman,
	})
	log.Info().Str("session", s.id).Str("partner", partnerID).Bool("guess", ev.guess).Bool("correct", correct).Msg("[HandleGuess] guess evaluated")

	c.persistGuess(s.id, internal.GuessRecord{
		PartnerID: partnerID,
		Guess:     ev.guess,
		Correct:   correct,
		CreatedAt: c.opts.Now(),
	})

	if p.unlocked {
		return
	}
	if correct && isHuman {
		c.unlock(p, s.id)
		return
	}

	s.phase = internal.PhaseResolved
	if p.allGuessed() {
		c.settle(p)
	}
}

// unlock turns a human pairing into a video link. It stays until a member
// leaves, so its timers are cancelled.
func (c *Coordinator) unlock(p *pairing, guesser string) {
	p.unlocked = true
	c.timers.cancelPairing(p.id)

	for _, id := range []string{guesser, p.other(guesser)} {
		s := c.registry.get(id)
		if s == nil {
			continue
		}
		s.phase = internal.PhaseVideoUnlocked
		s.client.sendMessage(internal.TypeUnlockVideo, internal.UnlockVideoData{PartnerID: p.other(id)})
	}
	log.Info().Str("pairing", p.id).Strs("members", p.members[:]).Msg("[Unlock] video unlocked")
}

func (c *Coordinator) onTimeUp(pairingID string) {
	p := c.table.pairingByID(pairingID)
	if p == nil || p.unlocked {
		return
	}
	p.timedUp = true

	for _, m := range p.humans() {
		s := c.registry.get(m)
		if s == nil {
			continue
		}
		if !p.hasGuessed(m) {
			s.phase = internal.PhaseGuessing
		}
		s.client.sendMessage(internal.TypeTimeUp, internal.TimeUpData{PartnerID: p.other(m)})
	}
	c.timers.arm(timerGuessWindow, p.id, c.opts.GuessWindow)
	log.Debug().Str("pairing", p.id).Msg("[OnTimeUp] conversation over")
}

func (c *Coordinator) onGuessWindowClosed(pairingID string) {
	p := c.table.pairingByID(pairingID)
	if p == nil || p.unlocked {
		return
	}
	c.settle(p)
}

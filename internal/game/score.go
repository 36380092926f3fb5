package game

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
)

// BadgeRule awards Code once Earned first holds for a user.
type BadgeRule struct {
	Code   string
	Earned func(u internal.User) bool
}

var BadgeRules = []BadgeRule{
	{internal.BadgeFirstGuess, func(u internal.User) bool { return u.TotalGuesses >= 1 }},
	{internal.BadgeAISpotter, func(u internal.User) bool { return u.CorrectAIGuesses >= 5 }},
	{internal.BadgePeoplePerson, func(u internal.User) bool { return u.CorrectHumanGuesses >= 5 }},
	{internal.BadgeSharpEye, func(u internal.User) bool { return u.Score >= 25 }},
}

// RecordGuess appends the guess and awards any badge whose threshold is now
// crossed, returning the badges that were newly awarded.
func RecordGuess(ctx context.Context, store RecordStore, sessionID string, g internal.GuessRecord) ([]string, error) {
	user, err := store.AppendGuess(ctx, sessionID, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	var awarded []string
	for _, rule := range BadgeRules {
		if !rule.Earned(user) || slices.Contains(user.Badges, rule.Code) {
			continue
		}
		ok, err := store.AwardBadge(ctx, sessionID, rule.Code)
		if err != nil {
			return awarded, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if ok {
			awarded = append(awarded, rule.Code)
		}
	}
	return awarded, nil
}

// persistGuess writes the guess off the loop; failures are logged and never
// reach the client.
func (c *Coordinator) persistGuess(sessionID string, g internal.GuessRecord) {
	if c.store == nil {
		return
	}
	c.spawn(func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.PersistTimeout)
		defer cancel()

		awarded, err := RecordGuess(ctx, c.store, sessionID, g)
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("[PersistGuess] guess not fully recorded")
		}
		for _, badge := range awarded {
			c.post(badgeAwarded{sessionID: sessionID, badge: badge})
		}
	})
}

func (c *Coordinator) ensureUser(sessionID string) {
	if c.store == nil {
		return
	}
	c.spawn(func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.PersistTimeout)
		defer cancel()

		if err := c.store.CreateUser(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("[EnsureUser] could not create user record")
		}
	})
}

func (c *Coordinator) handleBadge(ev badgeAwarded) {
	s := c.registry.get(ev.sessionID)
	if s == nil {
		return
	}
	s.client.sendMessage(internal.TypeBadgeAwarded, internal.BadgeAwardedData{Badge: ev.badge})
	log.Info().Str("session", ev.sessionID).Str("badge", ev.badge).Msg("[HandleBadge] badge awarded")
}

package game

import (
	"fmt"
	"time"
)

// pairing is one conversation between a human and either another human or
// the automated partner. members[0] is always a human session.
type pairing struct {
	id        string
	members   [2]string
	human     bool
	startedAt time.Time
	timedUp   bool
	unlocked  bool
	// guesses records each member's outcome; presence means "has guessed".
	guesses map[string]bool
}

func newPairing(id, a, b string, human bool, now time.Time) *pairing {
	return &pairing{
		id:        id,
		members:   [2]string{a, b},
		human:     human,
		startedAt: now,
		guesses:   make(map[string]bool, 2),
	}
}

func (p *pairing) other(id string) string {
	if p.members[0] == id {
		return p.members[1]
	}
	return p.members[0]
}

func (p *pairing) humans() []string {
	if p.human {
		return p.members[:]
	}
	return p.members[:1]
}

func (p *pairing) hasGuessed(id string) bool {
	_, ok := p.guesses[id]
	return ok
}

func (p *pairing) allGuessed() bool {
	for _, m := range p.humans() {
		if !p.hasGuessed(m) {
			return false
		}
	}
	return true
}

// partnershipTable is the symmetric session -> partner mapping. Automated
// partners have no reverse entry.
type partnershipTable struct {
	partners map[string]string
	bySess   map[string]*pairing
	byID     map[string]*pairing
}

func newPartnershipTable() *partnershipTable {
	return &partnershipTable{
		partners: make(map[string]string),
		bySess:   make(map[string]*pairing),
		byID:     make(map[string]*pairing),
	}
}

func (t *partnershipTable) pair(p *pairing) error {
	for _, m := range p.humans() {
		if other, ok := t.partners[m]; ok {
			return fmt.Errorf("%w: %s is with %s", ErrAlreadyPaired, m, other)
		}
	}
	a, b := p.members[0], p.members[1]
	t.partners[a] = b
	t.bySess[a] = p
	if p.human {
		t.partners[b] = a
		t.bySess[b] = p
	}
	t.byID[p.id] = p
	return nil
}

// unpair removes id's entry and the reverse entry, returning the dissolved
// pairing or nil if id had none.
func (t *partnershipTable) unpair(id string) *pairing {
	p, ok := t.bySess[id]
	if !ok {
		return nil
	}
	for _, m := range p.humans() {
		delete(t.partners, m)
		delete(t.bySess, m)
	}
	delete(t.byID, p.id)
	return p
}

func (t *partnershipTable) partnerOf(id string) (string, bool) {
	p, ok := t.partners[id]
	return p, ok
}

func (t *partnershipTable) pairingOf(id string) *pairing {
	return t.bySess[id]
}

func (t *partnershipTable) pairingByID(id string) *pairing {
	return t.byID[id]
}

func (t *partnershipTable) snapshot() map[string]string {
	out := make(map[string]string, len(t.partners))
	for k, v := range t.partners {
		out[k] = v
	}
	return out
}

func (t *partnershipTable) len() int {
	return len(t.byID)
}

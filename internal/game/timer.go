package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

type timerKind int

const (
	timerFallback timerKind = iota
	timerConversation
	timerGuessWindow
)

func (k timerKind) String() string {
	switch k {
	case timerFallback:
		return "fallback"
	case timerConversation:
		return "conversation"
	case timerGuessWindow:
		return "guess_window"
	default:
		return "unknown"
	}
}

type timerKey struct {
	kind  timerKind
	owner string
}

type armedTimer struct {
	seq      uint64
	deadline time.Time
	cancel   context.CancelFunc
}

// timerService arms one-shot timers whose expiry is funnelled back into the
// coordinator inbox. Only the loop goroutine touches it. A fired timer acts
// only if its sequence number still matches the armed entry, so a timer that
// was cancelled or re-armed while its event sat in the inbox is ignored.
type timerService struct {
	parent context.Context
	post   func(event) bool
	seq    uint64
	armed  map[timerKey]armedTimer
}

func newTimerService(parent context.Context, post func(event) bool) *timerService {
	return &timerService{
		parent: parent,
		post:   post,
		armed:  make(map[timerKey]armedTimer),
	}
}

// arm replaces any timer of the same kind and owner.
func (t *timerService) arm(kind timerKind, owner string, d time.Duration) uint64 {
	t.cancel(kind, owner)

	t.seq++
	seq := t.seq
	ctx, cancel := context.WithTimeout(t.parent, d)
	t.armed[timerKey{kind, owner}] = armedTimer{
		seq:      seq,
		deadline: time.Now().Add(d),
		cancel:   cancel,
	}

	post := t.post
	go func() {
		<-ctx.Done()
		if ctx.Err() == context.DeadlineExceeded {
			post(timerFired{kind: kind, owner: owner, seq: seq})
		}
	}()

	log.Debug().Str("timer", kind.String()).Str("owner", owner).Dur("after", d).Uint64("seq", seq).Msg("[ArmTimer] armed")
	return seq
}

func (t *timerService) cancel(kind timerKind, owner string) {
	key := timerKey{kind, owner}
	if at, ok := t.armed[key]; ok {
		at.cancel()
		delete(t.armed, key)
		log.Debug().Str("timer", kind.String()).Str("owner", owner).Uint64("seq", at.seq).Msg("[CancelTimer] cancelled")
	}
}

func (t *timerService) cancelPairing(pairingID string) {
	t.cancel(timerConversation, pairingID)
	t.cancel(timerGuessWindow, pairingID)
}

// claim consumes a fired timer, reporting whether it is still the live one.
func (t *timerService) claim(ev timerFired) bool {
	key := timerKey{ev.kind, ev.owner}
	at, ok := t.armed[key]
	if !ok || at.seq != ev.seq {
		return false
	}
	at.cancel()
	delete(t.armed, key)
	return true
}

func (t *timerService) pending(kind timerKind, owner string) bool {
	_, ok := t.armed[timerKey{kind, owner}]
	return ok
}

func (t *timerService) stopAll() {
	for key, at := range t.armed {
		at.cancel()
		delete(t.armed, key)
	}
}

package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/turing-backend/internal"
)

func TestTwoSessionsAreMatched(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	a := join(c, "A")
	assert.Empty(t, drain(a))
	assert.True(t, c.timers.pending(timerFallback, "A"))

	b := join(c, "B")

	matchedA := only[internal.MatchedData](t, a, internal.TypeMatched)
	matchedB := only[internal.MatchedData](t, b, internal.TypeMatched)
	assert.Equal(t, internal.MatchedData{PartnerID: "B", IsHuman: true}, matchedA)
	assert.Equal(t, internal.MatchedData{PartnerID: "A", IsHuman: true}, matchedB)

	assert.False(t, c.timers.pending(timerFallback, "A"), "fallback must be cancelled once paired")
	partner, ok := c.table.partnerOf("B")
	require.True(t, ok)
	assert.Equal(t, "A", partner)
	partner, ok = c.table.partnerOf("A")
	require.True(t, ok)
	assert.Equal(t, "B", partner)
	assertQueueInvariant(t, c)

	c.handle(messageEvent{inbound{a}, "A", "hello"})

	echo := only[internal.OutboundChatData](t, a, internal.TypeMessage)
	assert.Equal(t, internal.OutboundChatData{Sender: "A", Text: "hello"}, echo)
	relayed := only[internal.OutboundChatData](t, b, internal.TypeMessage)
	assert.Equal(t, internal.OutboundChatData{Sender: "A", Text: "hello"}, relayed)
}

func TestFallbackAssignsAutomatedPartner(t *testing.T) {
	gen := &MockGenerator{}
	gen.On("Generate", mockAnyCtx, "hi there").Return("hey", nil).Once()
	c := newTestCoordinator(t, nil, gen, Options{})

	cl := join(c, "C")
	assert.Empty(t, drain(cl))

	fire(t, c, timerFallback, "C")

	matched := only[internal.MatchedData](t, cl, internal.TypeMatched)
	assert.Equal(t, internal.MatchedData{PartnerID: "ai-test-1", IsHuman: false}, matched)
	assert.Empty(t, c.queue.snapshot())
	assertQueueInvariant(t, c)

	c.handle(messageEvent{inbound{cl}, "C", "hi there"})
	echo := only[internal.OutboundChatData](t, cl, internal.TypeMessage)
	assert.Equal(t, "C", echo.Sender)

	step(t, c)
	reply := only[internal.OutboundChatData](t, cl, internal.TypeMessage)
	assert.Equal(t, internal.OutboundChatData{Sender: "ai-test-1", Text: "hey"}, reply)

	gen.AssertNumberOfCalls(t, "Generate", 1)
	assert.Empty(t, c.inbox)
}

func TestGenerationFailureSendsApology(t *testing.T) {
	gen := &MockGenerator{}
	gen.On("Generate", mockAnyCtx, "hi").Return("", assert.AnError).Once()
	c := newTestCoordinator(t, nil, gen, Options{})

	cl := join(c, "C")
	fire(t, c, timerFallback, "C")
	drain(cl)

	c.handle(messageEvent{inbound{cl}, "C", "hi"})
	drain(cl)
	step(t, c)

	reply := only[internal.OutboundChatData](t, cl, internal.TypeMessage)
	assert.Equal(t, FallbackReply, reply.Text)
}

// waitWith parks a fresh session directly, bypassing matchmaking, so tests
// can line up several waiting sessions.
func waitWith(c *Coordinator, id, lastPartner string) *Client {
	cl := newTestClient()
	s := newSession(c.ctx, id, cl, c.opts.Now())
	s.lastPartner = lastPartner
	c.registry.add(s)
	c.park(s)
	return cl
}

func TestQueueIsFIFO(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})
	waitWith(c, "A", "")
	waitWith(c, "B", "")

	cl := join(c, "C")
	matched := only[internal.MatchedData](t, cl, internal.TypeMatched)
	assert.Equal(t, "A", matched.PartnerID, "oldest waiting session is matched first")
	assert.Equal(t, []string{"B"}, c.queue.snapshot())
	assert.False(t, c.timers.pending(timerFallback, "A"))

	d := join(c, "D")
	matched = only[internal.MatchedData](t, d, internal.TypeMatched)
	assert.Equal(t, "B", matched.PartnerID)
	assert.Empty(t, c.queue.snapshot())
	assertQueueInvariant(t, c)
}

func TestQueuePrefersSomeoneNew(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})
	waitWith(c, "B", "A")
	waitWith(c, "W", "")

	a := join(c, "A")

	matched := only[internal.MatchedData](t, a, internal.TypeMatched)
	assert.Equal(t, "W", matched.PartnerID, "B just talked to A")
	assert.Equal(t, []string{"B"}, c.queue.snapshot())
	assertQueueInvariant(t, c)
}

func TestQueueFallsBackToLastPartner(t *testing.T) {
	t.Run("rejoin after disconnect", func(t *testing.T) {
		c := newTestCoordinator(t, nil, nil, Options{})
		a, b := pairAB(t, c)

		b.Close("refresh")
		c.handle(disconnectEvent{inbound{b}})
		require.Equal(t, []string{internal.TypePartnerDisconnected}, typesOf(drain(a)))
		require.Equal(t, []string{"A"}, c.queue.snapshot())

		fresh := join(c, "B")

		assert.Equal(t, "A", only[internal.MatchedData](t, fresh, internal.TypeMatched).PartnerID)
		assert.Equal(t, "B", only[internal.MatchedData](t, a, internal.TypeMatched).PartnerID)
		partner, paired := c.table.partnerOf("B")
		assert.True(t, paired)
		assert.Equal(t, "A", partner)
		assert.Empty(t, c.queue.snapshot())
		assertQueueInvariant(t, c)
	})

	t.Run("settled pairing", func(t *testing.T) {
		c := newTestCoordinator(t, nil, nil, Options{})
		a, b := pairAB(t, c)
		first := c.table.pairingOf("A").id

		c.handle(guessEvent{inbound{a}, "A", "B", false})
		c.handle(guessEvent{inbound{b}, "B", "A", false})

		assert.Equal(t, []string{internal.TypeGuessResult, internal.TypeMatched}, typesOf(drain(a)))
		assert.Equal(t, []string{internal.TypeGuessResult, internal.TypeMatched}, typesOf(drain(b)))
		assert.Equal(t, 1, c.table.len())
		assert.NotEqual(t, first, c.table.pairingOf("A").id)
		assert.Empty(t, c.queue.snapshot())
		assertQueueInvariant(t, c)
	})
}

func TestChancePolicy(t *testing.T) {
	t.Run("selected", func(t *testing.T) {
		c := newTestCoordinator(t, nil, nil, Options{
			FallbackPolicy: FallbackByChance,
			FallbackChance: 0.3,
			Random:         func() float64 { return 0.1 },
		})
		cl := join(c, "A")
		matched := only[internal.MatchedData](t, cl, internal.TypeMatched)
		assert.False(t, matched.IsHuman)
		assert.False(t, c.timers.pending(timerFallback, "A"))
	})

	t.Run("not selected", func(t *testing.T) {
		c := newTestCoordinator(t, nil, nil, Options{
			FallbackPolicy: FallbackByChance,
			FallbackChance: 0.3,
			Random:         func() float64 { return 0.9 },
		})
		cl := join(c, "A")
		assert.Empty(t, drain(cl))
		assert.Equal(t, []string{"A"}, c.queue.snapshot())
		assert.True(t, c.timers.pending(timerFallback, "A"))
	})

	t.Run("human preferred", func(t *testing.T) {
		c := newTestCoordinator(t, nil, nil, Options{
			FallbackPolicy: FallbackByChance,
			FallbackChance: 0.5,
			Random:         func() float64 { return 0.9 },
		})
		a := join(c, "A")
		assert.Empty(t, drain(a))

		b := join(c, "B")
		matched := only[internal.MatchedData](t, b, internal.TypeMatched)
		assert.Equal(t, internal.MatchedData{PartnerID: "A", IsHuman: true}, matched)
	})
}

func TestJoinValidation(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	t.Run("invalid id closes the connection", func(t *testing.T) {
		for _, id := range []string{"", "ai-imposter", "has space"} {
			cl := join(c, id)
			errData := only[internal.ErrorData](t, cl, internal.TypeError)
			assert.Equal(t, "invalid_session", errData.Code)
			assert.False(t, cl.Alive())
		}
		assert.Zero(t, c.registry.len())
	})

	t.Run("repeated join keeps the connection", func(t *testing.T) {
		cl := join(c, "A")
		c.handle(joinEvent{inbound{cl}, "A"})

		errData := only[internal.ErrorData](t, cl, internal.TypeError)
		assert.Equal(t, "invalid_session", errData.Code)
		assert.True(t, cl.Alive())
		assert.Equal(t, []string{"A"}, c.queue.snapshot())
	})
}

func TestDuplicateSessionSupersedesOldConnection(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	old := join(c, "A")
	b := join(c, "B")
	drain(old)
	drain(b)

	fresh := join(c, "A")

	errData := only[internal.ErrorData](t, old, internal.TypeError)
	assert.Equal(t, "duplicate_session", errData.Code)
	assert.False(t, old.Alive())

	// B loses its partner; with nobody else waiting the new connection for
	// A is matched with B again.
	assert.Equal(t, []string{internal.TypePartnerDisconnected, internal.TypeMatched}, typesOf(drain(b)))
	assert.Equal(t, "B", only[internal.MatchedData](t, fresh, internal.TypeMatched).PartnerID)
	assert.Same(t, fresh, c.registry.get("A").client)
	assert.Nil(t, c.registry.byConn(old))
	assertQueueInvariant(t, c)

	// The superseded connection's disconnect must not touch the new session.
	c.handle(disconnectEvent{inbound{old}})
	assert.NotNil(t, c.registry.get("A"))
}

func TestRejoinUnderNewID(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	a := join(c, "A")
	b := join(c, "B")
	drain(a)
	drain(b)

	c.handle(joinEvent{inbound{a}, "A2"})

	assert.Equal(t, []string{internal.TypePartnerDisconnected, internal.TypeMatched}, typesOf(drain(b)))
	assert.Equal(t, "B", only[internal.MatchedData](t, a, internal.TypeMatched).PartnerID)
	assert.Nil(t, c.registry.get("A"))
	assert.Equal(t, "B", c.registry.get("A2").lastPartner)
	partner, _ := c.table.partnerOf("A2")
	assert.Equal(t, "B", partner)
	assert.Empty(t, c.queue.snapshot())
	assertQueueInvariant(t, c)
}

func TestLeave(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	a := join(c, "A")
	b := join(c, "B")
	drain(a)
	drain(b)

	c.handle(leaveEvent{inbound{a}, "A"})

	left := only[internal.LeftData](t, a, internal.TypeLeft)
	assert.Equal(t, "A", left.SessionID)
	assert.True(t, a.Alive())
	assert.Equal(t, []string{internal.TypePartnerDisconnected}, typesOf(drain(b)))
	assert.Equal(t, []string{"B"}, c.queue.snapshot())

	c.handle(leaveEvent{inbound{a}, "A"})
	errData := only[internal.ErrorData](t, a, internal.TypeError)
	assert.Equal(t, "invalid_session", errData.Code)
}

func TestStaleFallbackTimerIsIgnored(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	cl := join(c, "A")
	stale := c.timers.armed[timerKey{timerFallback, "A"}].seq

	// Re-arming replaces the timer; the old expiry must not pair anyone.
	c.timers.arm(timerFallback, "A", time.Hour)
	c.handle(timerFired{kind: timerFallback, owner: "A", seq: stale})

	assert.Empty(t, drain(cl))
	assert.Equal(t, []string{"A"}, c.queue.snapshot())

	fire(t, c, timerFallback, "A")
	matched := only[internal.MatchedData](t, cl, internal.TypeMatched)
	assert.False(t, matched.IsHuman)
}

func TestFallbackAfterPairingIsIgnored(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})

	a := join(c, "A")
	seq := c.timers.armed[timerKey{timerFallback, "A"}].seq
	b := join(c, "B")
	drain(a)
	drain(b)

	c.handle(timerFired{kind: timerFallback, owner: "A", seq: seq})

	assert.Empty(t, drain(a))
	partner, _ := c.table.partnerOf("A")
	assert.Equal(t, "B", partner)
}

func TestRealTimersFireThroughTheLoop(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{FallbackDelay: 10 * time.Millisecond})

	cl := join(c, "A")
	ev := step(t, c)

	require.IsType(t, timerFired{}, ev)
	matched := only[internal.MatchedData](t, cl, internal.TypeMatched)
	assert.False(t, matched.IsHuman)
}

package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/utils"
)

type FallbackPolicy string

const (
	// FallbackOnDelay assigns an automated partner after FallbackDelay of waiting.
	FallbackOnDelay FallbackPolicy = "delay"
	// FallbackByChance assigns one immediately with probability FallbackChance
	// when no human is waiting, and otherwise behaves like FallbackOnDelay.
	FallbackByChance FallbackPolicy = "chance"
)

// FallbackReply is sent in place of a reply the generator failed to produce.
const FallbackReply = "Sorry, I had an error processing that."

type Options struct {
	ConversationDuration time.Duration
	GuessWindow          time.Duration
	FallbackPolicy       FallbackPolicy
	FallbackDelay        time.Duration
	FallbackChance       float64
	HeartbeatTimeout     time.Duration
	SweepInterval        time.Duration
	GenerationTimeout    time.Duration
	PersistTimeout       time.Duration
	MaxMessageLength     int
	MessageRate          float64
	MessageBurst         int
	InboxSize            int

	// Hooks for tests.
	Random         func() float64
	Now            func() time.Time
	NewAutomatedID func() string
	NewPairingID   func() string
}

func (o Options) withDefaults() Options {
	if o.ConversationDuration <= 0 {
		o.ConversationDuration = internal.ConversationDuration
	}
	if o.GuessWindow <= 0 {
		o.GuessWindow = internal.GuessWindowDuration
	}
	if o.FallbackPolicy == "" {
		o.FallbackPolicy = FallbackOnDelay
	}
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = internal.FallbackDelay
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = internal.HeartbeatTimeout
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 20 * time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = internal.MaxMessageLength
	}
	if o.MessageRate <= 0 {
		o.MessageRate = 5
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 10
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 1024
	}
	if o.Random == nil {
		o.Random = rand.Float64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewAutomatedID == nil {
		o.NewAutomatedID = utils.NewAutomatedID
	}
	if o.NewPairingID == nil {
		o.NewPairingID = utils.NewPairingID
	}
	return o
}

// Snapshot is a point-in-time copy of the coordinator's tables.
type Snapshot struct {
	Waiting  []string                  `json:"waiting"`
	Sessions int                       `json:"sessions"`
	Pairings int                       `json:"pairings"`
	Partners map[string]string         `json:"partners"`
	Phases   map[string]internal.Phase `json:"phases"`
}

// Coordinator owns the registry, queue, partnership table and timers. All of
// them are touched only from the Run goroutine; everything else talks to it
// by posting events.
type Coordinator struct {
	opts  Options
	store RecordStore
	gen   Generator

	inbox   chan event
	stopped chan struct{}
	stop    sync.Once

	// ctx bounds background work (generation, persistence, timers).
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	registry *registry
	queue    *waitQueue
	table    *partnershipTable
	timers   *timerService
	sweeper  gocron.Scheduler
}

func NewCoordinator(store RecordStore, gen Generator, opts Options) *Coordinator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		opts:     opts,
		store:    store,
		gen:      gen,
		inbox:    make(chan event, opts.InboxSize),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		registry: newRegistry(),
		queue:    &waitQueue{},
		table:    newPartnershipTable(),
	}
	c.timers = newTimerService(ctx, c.post)
	return c
}

// Run processes events until ctx is cancelled, then closes every client and
// waits for background work to finish.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.startSweeper(); err != nil {
		return err
	}
	log.Info().Str("fallback", string(c.opts.FallbackPolicy)).Dur("conversation", c.opts.ConversationDuration).Msg("[Coordinator] running")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev := <-c.inbox:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) shutdown() {
	c.stop.Do(func() { close(c.stopped) })
	c.cancel()
	c.timers.stopAll()
	if c.sweeper != nil {
		if err := c.sweeper.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("[Coordinator] sweeper shutdown")
		}
	}
	for _, s := range c.registry.all() {
		s.cancel()
		s.client.Close("server shutting down")
	}
	c.bg.Wait()
	log.Info().Msg("[Coordinator] stopped")
}

// post delivers ev to the loop. It reports false once the loop has stopped.
func (c *Coordinator) post(ev event) bool {
	select {
	case <-c.stopped:
		return false
	default:
	}
	select {
	case c.inbox <- ev:
		return true
	case <-c.stopped:
		return false
	}
}

// Snapshot asks the loop for a copy of its tables.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !c.post(snapshotRequest{reply: reply}) {
		return Snapshot{}, ErrStopped
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-c.stopped:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) handle(ev event) {
	if in, ok := ev.(interface{ origin() *Client }); ok {
		c.touch(in.origin())
	}

	switch ev := ev.(type) {
	case joinEvent:
		c.handleJoin(ev)
	case leaveEvent:
		c.handleLeave(ev)
	case messageEvent:
		c.handleMessage(ev)
	case guessEvent:
		c.handleGuess(ev)
	case peerHandleEvent:
		c.handlePeerHandle(ev)
	case heartbeatEvent:
		c.handleHeartbeat(ev)
	case disconnectEvent:
		c.handleDisconnect(ev)
	case timerFired:
		c.handleTimer(ev)
	case replyReady:
		c.handleReply(ev)
	case badgeAwarded:
		c.handleBadge(ev)
	case sweepEvent:
		c.handleSweep(ev)
	case snapshotRequest:
		ev.reply <- c.snapshot()
	default:
		log.Error().Msgf("[Coordinator] unhandled event %T", ev)
	}
}

func (c *Coordinator) handleTimer(ev timerFired) {
	if !c.timers.claim(ev) {
		log.Debug().Str("timer", ev.kind.String()).Str("owner", ev.owner).Uint64("seq", ev.seq).Msg("[HandleTimer] stale timer dropped")
		return
	}
	switch ev.kind {
	case timerFallback:
		c.onFallback(ev.owner)
	case timerConversation:
		c.onTimeUp(ev.owner)
	case timerGuessWindow:
		c.onGuessWindowClosed(ev.owner)
	}
}

func (c *Coordinator) snapshot() Snapshot {
	phases := make(map[string]internal.Phase, c.registry.len())
	for _, s := range c.registry.all() {
		phases[s.id] = s.phase
	}
	return Snapshot{
		Waiting:  c.queue.snapshot(),
		Sessions: c.registry.len(),
		Pairings: c.table.len(),
		Partners: c.table.snapshot(),
		Phases:   phases,
	}
}

func (c *Coordinator) touch(cl *Client) {
	if s := c.registry.byConn(cl); s != nil {
		s.lastSeen = c.opts.Now()
	}
}

// bound resolves the session attached to cl, checking the claimed id.
func (c *Coordinator) bound(cl *Client, claimed string) (*session, error) {
	s := c.registry.byConn(cl)
	if s == nil {
		return nil, ErrInvalidSession
	}
	if claimed != "" && claimed != s.id {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// spawn runs fn as tracked background work.
func (c *Coordinator) spawn(fn func()) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn()
	}()
}

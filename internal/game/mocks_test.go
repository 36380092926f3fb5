package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/turing-backend/internal"
)

// --- Generator ---

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// blockingGenerator holds every call until release is closed.
type blockingGenerator struct {
	release chan struct{}
	reply   string
}

func (g *blockingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	<-g.release
	return g.reply, nil
}

// --- RecordStore ---

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) CreateUser(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockRecordStore) AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error) {
	args := m.Called(ctx, sessionID, g)
	return args.Get(0).(internal.User), args.Error(1)
}

func (m *MockRecordStore) AwardBadge(ctx context.Context, sessionID, badge string) (bool, error) {
	args := m.Called(ctx, sessionID, badge)
	return args.Bool(0), args.Error(1)
}

// --- Connection ---

var errConnClosed = errors.New("connection closed")

// fakeConn feeds frames from incoming and records everything written.
type fakeConn struct {
	incoming chan []byte

	mu      sync.Mutex
	written [][]byte
	closed  bool
	reason  string
	wrote   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		wrote:    make(chan struct{}, 256),
	}
}

func (f *fakeConn) Read() ([]byte, error) {
	data, ok := <-f.incoming
	if !ok {
		return nil, errConnClosed
	}
	return data, nil
}

func (f *fakeConn) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errConnClosed
	}
	f.written = append(f.written, data)
	f.wrote <- struct{}{}
	return nil
}

func (f *fakeConn) Ping() error {
	return nil
}

func (f *fakeConn) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.reason = reason
	close(f.incoming)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// --- helpers ---

type frame = internal.Message[json.RawMessage]

func newTestClient() *Client {
	return NewClient(newFakeConn(), nil)
}

// newTestCoordinator returns a coordinator whose loop is driven by the test
// through handle and step. Timers default far into the future.
func newTestCoordinator(t *testing.T, store RecordStore, gen Generator, opts Options) *Coordinator {
	t.Helper()

	if opts.FallbackDelay == 0 {
		opts.FallbackDelay = time.Hour
	}
	if opts.ConversationDuration == 0 {
		opts.ConversationDuration = time.Hour
	}
	if opts.GuessWindow == 0 {
		opts.GuessWindow = time.Hour
	}
	n := 0
	opts.NewAutomatedID = func() string {
		n++
		return fmt.Sprintf("ai-test-%d", n)
	}

	c := NewCoordinator(store, gen, opts)
	t.Cleanup(func() {
		c.stop.Do(func() { close(c.stopped) })
		c.cancel()
		c.timers.stopAll()
		c.bg.Wait()
	})
	return c
}

// step handles the next event posted by background work.
func step(t *testing.T, c *Coordinator) event {
	t.Helper()
	select {
	case ev := <-c.inbox:
		c.handle(ev)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived on the coordinator inbox")
		return nil
	}
}

// fire delivers the currently armed timer of kind for owner.
func fire(t *testing.T, c *Coordinator, kind timerKind, owner string) {
	t.Helper()
	at, ok := c.timers.armed[timerKey{kind, owner}]
	require.Truef(t, ok, "no %s timer armed for %s", kind, owner)
	c.handle(timerFired{kind: kind, owner: owner, seq: at.seq})
}

func join(c *Coordinator, id string) *Client {
	cl := newTestClient()
	c.handle(joinEvent{inbound{cl}, id})
	return cl
}

// drain returns every message queued for cl so far.
func drain(cl *Client) []frame {
	var out []frame
	for {
		select {
		case raw := <-cl.send:
			var f frame
			if err := json.Unmarshal(raw, &f); err == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

func typesOf(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

// only asserts cl received exactly one message of typ and decodes it.
func only[T any](t *testing.T, cl *Client, typ string) T {
	t.Helper()
	frames := drain(cl)
	require.Equal(t, []string{typ}, typesOf(frames))
	var data T
	require.NoError(t, json.Unmarshal(frames[0].Data, &data))
	return data
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var data T
	require.NoError(t, json.Unmarshal(f.Data, &data))
	return data
}

// assertQueueInvariant checks that every session is either queued or
// partnered, never both.
func assertQueueInvariant(t *testing.T, c *Coordinator) {
	t.Helper()
	snap := c.snapshot()
	waiting := make(map[string]bool, len(snap.Waiting))
	for _, id := range snap.Waiting {
		waiting[id] = true
	}
	for id := range snap.Phases {
		_, partnered := snap.Partners[id]
		require.Truef(t, waiting[id] != partnered, "session %s: waiting=%v partnered=%v", id, waiting[id], partnered)
	}
	for id := range waiting {
		_, registered := snap.Phases[id]
		require.Truef(t, registered, "queued session %s is not registered", id)
	}
}

var mockAnyCtx = mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil })

package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/scythe504/turing-backend/internal"
)

func TestDecodeEvent(t *testing.T) {
	cl := newTestClient()

	tests := []struct {
		name string
		raw  string
		want event
	}{
		{"join bare string", `{"type":"join","data":"abc"}`, joinEvent{inbound{cl}, "abc"}},
		{"join object", `{"type":"join","data":{"sessionId":"abc"}}`, joinEvent{inbound{cl}, "abc"}},
		{"join without data", `{"type":"join"}`, joinEvent{inbound{cl}, ""}},
		{"leave", `{"type":"leave","data":"abc"}`, leaveEvent{inbound{cl}, "abc"}},
		{"message", `{"type":"message","data":{"sender":"abc","text":"hi"}}`, messageEvent{inbound{cl}, "abc", "hi"}},
		{"message sessionId alias", `{"type":"message","data":{"sessionId":"abc","text":"hi"}}`, messageEvent{inbound{cl}, "abc", "hi"}},
		{"guess", `{"type":"guess","data":{"sessionId":"abc","partnerId":"ai-1","guess":true}}`, guessEvent{inbound{cl}, "abc", "ai-1", true}},
		{"peer handle", `{"type":"peerHandle","data":{"sessionId":"abc","handle":"peer-9","partnerId":"xyz"}}`, peerHandleEvent{inbound{cl}, "abc", "peer-9", "xyz"}},
		{"heartbeat", `{"type":"heartbeat","data":{"sessionId":"abc"}}`, heartbeatEvent{inbound{cl}, "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEvent(cl, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, raw := range []string{`not json`, `{"type":"dance"}`, `{"type":"guess","data":{"guess":"yes"}}`} {
		_, err := decodeEvent(cl, []byte(raw))
		assert.ErrorIs(t, err, ErrBadRequest, raw)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	cl := newTestClient()
	cl.Close("bye")

	assert.False(t, cl.Send(internal.Message[any]{Type: internal.TypeLeft}))
	assert.Empty(t, drain(cl))
}

func TestClientClosesWhenBufferIsFull(t *testing.T) {
	cl := newTestClient()
	for range sendBufferSize {
		require.True(t, cl.sendMessage(internal.TypeTimeUp, nil))
	}

	assert.False(t, cl.sendMessage(internal.TypeTimeUp, nil))
	assert.False(t, cl.Alive())
}

func TestWritePumpFlushesBeforeClosing(t *testing.T) {
	conn := newFakeConn()
	cl := NewClient(conn, nil)
	go cl.writePump()

	cl.sendError(ErrInvalidSession, "Invalid session id.")
	cl.Close("invalid session")

	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	frames := conn.frames()
	require.Len(t, frames, 1)

	var msg internal.Message[internal.ErrorData]
	require.NoError(t, json.Unmarshal(frames[0], &msg))
	assert.Equal(t, internal.TypeError, msg.Type)
	assert.Equal(t, "invalid_session", msg.Data.Code)
	assert.Equal(t, "invalid session", conn.reason)
}

func TestReadPumpPostsEventsAndDisconnect(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})
	conn := newFakeConn()
	cl := NewClient(conn, rate.NewLimiter(rate.Every(time.Hour), 2))
	go cl.readPump(c)

	conn.incoming <- []byte(`{"type":"join","data":"A"}`)
	conn.incoming <- []byte(`{"type":"heartbeat","data":"A"}`)
	conn.incoming <- []byte(`{"type":"heartbeat","data":"A"}`)

	assert.Equal(t, joinEvent{inbound{cl}, "A"}, step(t, c))
	assert.Equal(t, heartbeatEvent{inbound{cl}, "A"}, step(t, c))

	// The third frame exceeded the burst and was answered directly.
	require.Eventually(t, func() bool { return len(cl.send) > 0 }, time.Second, 5*time.Millisecond)
	errData := only[internal.ErrorData](t, cl, internal.TypeError)
	assert.Equal(t, "rate_limited", errData.Code)

	conn.Close("test over")
	assert.Equal(t, disconnectEvent{inbound{cl}}, step(t, c))
	assert.Zero(t, c.registry.len())
	assert.False(t, cl.Alive())
}

func TestReadPumpRejectsMalformedFrames(t *testing.T) {
	c := newTestCoordinator(t, nil, nil, Options{})
	conn := newFakeConn()
	cl := NewClient(conn, nil)
	go cl.readPump(c)

	conn.incoming <- []byte(`{{{`)

	require.Eventually(t, func() bool { return len(cl.send) > 0 }, time.Second, 5*time.Millisecond)
	errData := only[internal.ErrorData](t, cl, internal.TypeError)
	assert.Equal(t, "bad_request", errData.Code)
	assert.True(t, cl.Alive())

	conn.Close("test over")
	step(t, c)
}

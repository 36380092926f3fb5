package game

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/scythe504/turing-backend/internal"
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxFrameLength = 16 * 1024
)

type WebsocketConnection struct {
	socket *websocket.Conn
}

func NewWebsocketConnection(conn *websocket.Conn) *WebsocketConnection {
	conn.SetReadLimit(maxFrameLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WebsocketConnection{socket: conn}
}

func (wc *WebsocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	if err == nil {
		_ = wc.socket.SetReadDeadline(time.Now().Add(pongWait))
	}
	return p, err
}

func (wc *WebsocketConnection) Write(data []byte) error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *WebsocketConnection) Ping() error {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *WebsocketConnection) Close(reason string) {
	_ = wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	_ = wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	_ = wc.socket.Close()
}

// NewUpgrader accepts any origin when allowed contains "*".
func NewUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
	}
}

// HandleWebSocket upgrades the request and attaches the connection to the
// coordinator. The session is bound later by the client's join message.
func (co *Coordinator) HandleWebSocket(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("[HandleWebSocket] upgrade failed")
			return
		}

		limiter := rate.NewLimiter(rate.Limit(co.opts.MessageRate), co.opts.MessageBurst)
		client := NewClient(NewWebsocketConnection(conn), limiter)
		log.Debug().Uint64("client", client.id).Str("remote", r.RemoteAddr).Msg("[HandleWebSocket] connection opened")
		client.Start(co)
	}
}

// decodeEvent turns one frame into a typed event.
func decodeEvent(c *Client, raw []byte) (event, error) {
	var baseMsg internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &baseMsg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	from := inbound{client: c}

	switch baseMsg.Type {
	case internal.TypeJoin:
		var ref internal.SessionRef
		if err := unmarshalData(baseMsg.Data, &ref); err != nil {
			return nil, err
		}
		return joinEvent{from, ref.SessionID}, nil

	case internal.TypeLeave:
		var ref internal.SessionRef
		if err := unmarshalData(baseMsg.Data, &ref); err != nil {
			return nil, err
		}
		return leaveEvent{from, ref.SessionID}, nil

	case internal.TypeMessage:
		var data internal.ChatMessageData
		if err := unmarshalData(baseMsg.Data, &data); err != nil {
			return nil, err
		}
		return messageEvent{from, data.From(), data.Text}, nil

	case internal.TypeGuess:
		var data internal.GuessData
		if err := unmarshalData(baseMsg.Data, &data); err != nil {
			return nil, err
		}
		return guessEvent{from, data.SessionID, data.PartnerID, data.Guess}, nil

	case internal.TypePeerHandle:
		var data internal.PeerHandleData
		if err := unmarshalData(baseMsg.Data, &data); err != nil {
			return nil, err
		}
		return peerHandleEvent{from, data.SessionID, data.Handle, data.PartnerID}, nil

	case internal.TypeHeartbeat:
		var ref internal.SessionRef
		if err := unmarshalData(baseMsg.Data, &ref); err != nil {
			return nil, err
		}
		return heartbeatEvent{from, ref.SessionID}, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrBadRequest, baseMsg.Type)
	}
}

// unmarshalData treats a missing data field as an empty payload.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

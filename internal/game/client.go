package game

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/scythe504/turing-backend/internal"
)

const (
	sendBufferSize = 64
	pingPeriod     = 30 * time.Second
)

var clientSeq atomic.Uint64

// Client owns one connection. The coordinator only ever enqueues onto send;
// the write pump is the sole writer to the connection.
type Client struct {
	id      uint64
	conn    Connection
	limiter *rate.Limiter
	send    chan []byte

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	reason    string
}

func NewClient(conn Connection, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Client{
		id:      clientSeq.Add(1),
		conn:    conn,
		limiter: limiter,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// Alive reports whether the connection has not been closed.
func (c *Client) Alive() bool {
	return !c.closed.Load()
}

// Send queues v for delivery. A full buffer means the peer stopped reading;
// the client is closed and Send reports false.
func (c *Client) Send(v any) bool {
	if !c.Alive() {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Uint64("client", c.id).Msg("[Client.Send] marshal failed")
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().Uint64("client", c.id).Msg("[Client.Send] send buffer full, closing")
		c.Close("send buffer full")
		return false
	}
}

func (c *Client) sendMessage(typ string, data any) bool {
	return c.Send(internal.Message[any]{Type: typ, Data: data})
}

func (c *Client) sendError(err error, msg string) bool {
	return c.sendMessage(internal.TypeError, internal.ErrorData{Code: errorCode(err), Message: msg})
}

// Close marks the client dead. Messages already queued are still flushed by
// the write pump before the connection itself is closed.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		c.closed.Store(true)
		close(c.done)
	})
}

// Start runs both pumps for the client.
func (c *Client) Start(co *Coordinator) {
	go c.writePump()
	go c.readPump(co)
}

func (c *Client) readPump(co *Coordinator) {
	defer func() {
		c.Close("read closed")
		co.post(disconnectEvent{inbound{c}})
	}()

	for {
		raw, err := c.conn.Read()
		if err != nil {
			if c.Alive() {
				log.Debug().Err(err).Uint64("client", c.id).Msg("[Client.readPump] read failed")
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError(ErrRateLimited, "Slow down.")
			continue
		}

		ev, err := decodeEvent(c, raw)
		if err != nil {
			log.Warn().Err(err).Uint64("client", c.id).Msg("[Client.readPump] dropping malformed frame")
			c.sendError(err, "Malformed message.")
			continue
		}

		if !co.post(ev) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(c.reason)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(msg); err != nil {
				log.Debug().Err(err).Uint64("client", c.id).Msg("[Client.writePump] write failed")
				c.Close("write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.Close("ping failed")
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still buffered after Close.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

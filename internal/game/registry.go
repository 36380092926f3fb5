package game

import (
	"context"
	"time"

	"github.com/scythe504/turing-backend/internal"
)

type session struct {
	id          string
	client      *Client
	phase       internal.Phase
	lastSeen    time.Time
	lastPartner string
	peerHandle  string

	// ctx is cancelled on teardown and aborts in-flight reply generation.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, id string, client *Client, now time.Time) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:       id,
		client:   client,
		phase:    internal.PhaseWaiting,
		lastSeen: now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// registry maps session ids to live connections and back.
type registry struct {
	byID     map[string]*session
	byClient map[*Client]*session
}

func newRegistry() *registry {
	return &registry{
		byID:     make(map[string]*session),
		byClient: make(map[*Client]*session),
	}
}

func (r *registry) add(s *session) {
	r.byID[s.id] = s
	r.byClient[s.client] = s
}

func (r *registry) remove(id string) *session {
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	if r.byClient[s.client] == s {
		delete(r.byClient, s.client)
	}
	return s
}

func (r *registry) get(id string) *session {
	return r.byID[id]
}

func (r *registry) byConn(c *Client) *session {
	return r.byClient[c]
}

func (r *registry) all() []*session {
	out := make([]*session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

func (r *registry) len() int {
	return len(r.byID)
}

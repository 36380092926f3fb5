package game

import "time"

// event is the closed set of things the coordinator loop reacts to.
type event interface {
	isEvent()
}

// inbound events arrive from a client connection.
type inbound struct {
	client *Client
}

func (inbound) isEvent() {}

func (i inbound) origin() *Client { return i.client }

type joinEvent struct {
	inbound
	sessionID string
}

type leaveEvent struct {
	inbound
	sessionID string
}

type messageEvent struct {
	inbound
	sessionID string
	text      string
}

type guessEvent struct {
	inbound
	sessionID string
	partnerID string
	guess     bool
}

type peerHandleEvent struct {
	inbound
	sessionID string
	handle    string
	partnerID string
}

type heartbeatEvent struct {
	inbound
	sessionID string
}

type disconnectEvent struct {
	inbound
}

// timerFired is posted by an armed timer when its deadline passes.
type timerFired struct {
	kind  timerKind
	owner string
	seq   uint64
}

func (timerFired) isEvent() {}

// replyReady carries a generated reply back onto the loop.
type replyReady struct {
	client      *Client
	sessionID   string
	pairingID   string
	automatedID string
	text        string
}

func (replyReady) isEvent() {}

type badgeAwarded struct {
	sessionID string
	badge     string
}

func (badgeAwarded) isEvent() {}

type sweepEvent struct {
	at time.Time
}

func (sweepEvent) isEvent() {}

type snapshotRequest struct {
	reply chan Snapshot
}

func (snapshotRequest) isEvent() {}

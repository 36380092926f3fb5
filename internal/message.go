package internal

import (
	"encoding/json"
	"strings"
)

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound message types.
const (
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeMessage    = "message"
	TypeGuess      = "guess"
	TypePeerHandle = "peerHandle"
	TypeHeartbeat  = "heartbeat"
)

// Outbound message types. TypeMessage is shared by both directions.
const (
	TypeMatched             = "matched"
	TypeTimeUp              = "timeUp"
	TypeGuessResult         = "guessResult"
	TypeUnlockVideo         = "unlockVideo"
	TypeReceivePeerHandle   = "receivePeerHandle"
	TypePartnerDisconnected = "partnerDisconnected"
	TypeLeft                = "left"
	TypeError               = "error"
	TypeBadgeAwarded        = "badgeAwarded"
)

// SessionRef carries the session id for join, leave and heartbeat. Clients
// may send either a bare JSON string or an object with a sessionId field.
type SessionRef struct {
	SessionID string `json:"sessionId"`
}

func (s *SessionRef) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(b, &s.SessionID)
	}
	type plain SessionRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = SessionRef(p)
	return nil
}

type ChatMessageData struct {
	Sender    string `json:"sender"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
}

// From returns the claimed sender, accepting sessionId as an alias.
func (c ChatMessageData) From() string {
	if c.Sender != "" {
		return c.Sender
	}
	return c.SessionID
}

type GuessData struct {
	SessionID string `json:"sessionId"`
	PartnerID string `json:"partnerId"`
	Guess     bool   `json:"guess"`
}

type PeerHandleData struct {
	SessionID string `json:"sessionId"`
	Handle    string `json:"handle"`
	PartnerID string `json:"partnerId"`
}

type MatchedData struct {
	PartnerID string `json:"partnerId"`
	IsHuman   bool   `json:"isHuman"`
}

type OutboundChatData struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type TimeUpData struct {
	PartnerID string `json:"partnerId"`
}

type GuessResultData struct {
	PartnerID      string `json:"partnerId"`
	IsCorrect      bool   `json:"isCorrect"`
	IsPartnerHuman bool   `json:"isPartnerHuman"`
}

type UnlockVideoData struct {
	PartnerID string `json:"partnerId"`
}

type ReceivePeerHandleData struct {
	Handle        string `json:"handle"`
	FromSessionID string `json:"fromSessionId"`
}

type LeftData struct {
	SessionID string `json:"sessionId"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BadgeAwardedData struct {
	Badge string `json:"badge"`
}

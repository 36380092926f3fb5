package internal

import (
	"time"
)

const (
	ConversationDuration = 120 * time.Second
	FallbackDelay        = 30 * time.Second
	GuessWindowDuration  = 30 * time.Second
	HeartbeatTimeout     = 60 * time.Second
	MaxMessageLength     = 2000
	LeaderboardSize      = 10
)

// Phase is where a session currently sits in the pairing lifecycle.
// A disconnected session has no phase; it is simply absent from the registry.
type Phase string

const (
	PhaseWaiting         Phase = "waiting"
	PhasePairedHuman     Phase = "paired_human"
	PhasePairedAutomated Phase = "paired_automated"
	PhaseGuessing        Phase = "guessing"
	PhaseResolved        Phase = "resolved"
	PhaseVideoUnlocked   Phase = "video_unlocked"
)

// Badge codes awarded by the guess evaluator.
const (
	BadgeFirstGuess   = "first-guess"
	BadgeAISpotter    = "ai-spotter"
	BadgePeoplePerson = "people-person"
	BadgeSharpEye     = "sharp-eye"
)

// User is the persisted record of a participant.
type User struct {
	SessionID           string    `json:"session_id"`
	Score               int       `json:"score"`
	TotalGuesses        int       `json:"total_guesses"`
	CorrectGuesses      int       `json:"correct_guesses"`
	CorrectAIGuesses    int       `json:"correct_ai_guesses"`
	CorrectHumanGuesses int       `json:"correct_human_guesses"`
	Badges              []string  `json:"badges"`
	CreatedAt           time.Time `json:"created_at"`
}

// GuessRecord is one entry in a participant's guess history.
type GuessRecord struct {
	PartnerID string    `json:"partner_id"`
	Guess     bool      `json:"guess"` // true means "human"
	Correct   bool      `json:"correct"`
	CreatedAt time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  int    `json:"score"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

package game

import (
	"context"

	"github.com/scythe504/turing-backend/internal"
)

// RecordStore is the slice of the record store the coordinator writes to.
type RecordStore interface {
	CreateUser(ctx context.Context, sessionID string) error
	AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error)
	AwardBadge(ctx context.Context, sessionID, badge string) (bool, error)
}

// Generator produces the automated partner's replies.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Connection is one client transport. Implementations need not be safe for
// concurrent Read calls or concurrent Write calls, but Read and Write may run
// at the same time.
type Connection interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close(reason string)
}

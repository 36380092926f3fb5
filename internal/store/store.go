package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/scythe504/turing-backend/internal"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUnexpectedDatabase = errors.New("unexpected database error")
)

// Store persists participant records, guess history and badges.
type Store interface {
	FindUser(ctx context.Context, sessionID string) (internal.User, error)
	// CreateUser is a no-op when the user already exists.
	CreateUser(ctx context.Context, sessionID string) error
	// AppendGuess records a guess, creating the user if needed, and returns
	// the user with updated counters.
	AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error)
	// AwardBadge reports whether the badge was newly awarded.
	AwardBadge(ctx context.Context, sessionID, badge string) (bool, error)
	GetBadges(ctx context.Context, sessionID string) ([]string, error)
	ListTopScores(ctx context.Context, limit int) ([]internal.User, error)
	Close() error
}

type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Open returns the store named by opts.Driver with its schema migrated.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// guessDeltas returns the counter increments for one guess: score,
// correct "AI" guesses and correct "human" guesses.
func guessDeltas(g internal.GuessRecord) (score, correctAI, correctHuman int) {
	if !g.Correct {
		return 0, 0, 0
	}
	if g.Guess {
		return 1, 0, 1
	}
	return 1, 1, 0
}

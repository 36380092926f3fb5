package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/migrations"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at path and migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	// sqlite allows a single writer; serialize at the pool instead of retrying.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if err := migrations.Up(db, migrations.DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindUser(ctx context.Context, sessionID string) (internal.User, error) {
	user := internal.User{SessionID: sessionID}

	row := s.db.QueryRowContext(ctx, `SELECT score, total_guesses, correct_guesses, correct_ai_guesses, correct_human_guesses, created_at
		FROM users WHERE session_id = ?`, sessionID)
	err := row.Scan(&user.Score, &user.TotalGuesses, &user.CorrectGuesses, &user.CorrectAIGuesses, &user.CorrectHumanGuesses, &user.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return internal.User{}, ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return internal.User{}, err
		default:
			return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
		}
	}

	badges, err := s.GetBadges(ctx, sessionID)
	if err != nil {
		return internal.User{}, err
	}
	user.Badges = badges
	return user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (session_id) VALUES (?) ON CONFLICT (session_id) DO NOTHING`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return nil
}

func (s *SQLiteStore) AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	defer tx.Rollback()

	score, correctAI, correctHuman := guessDeltas(g)

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (session_id) VALUES (?) ON CONFLICT (session_id) DO NOTHING`, sessionID); err != nil {
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO guesses (session_id, partner_id, guess, correct) VALUES (?, ?, ?, ?)`,
		sessionID, g.PartnerID, g.Guess, g.Correct); err != nil {
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET
			score = score + ?,
			total_guesses = total_guesses + 1,
			correct_guesses = correct_guesses + ?,
			correct_ai_guesses = correct_ai_guesses + ?,
			correct_human_guesses = correct_human_guesses + ?
		WHERE session_id = ?`, score, score, correctAI, correctHuman, sessionID); err != nil {
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}

	return s.FindUser(ctx, sessionID)
}

func (s *SQLiteStore) AwardBadge(ctx context.Context, sessionID, badge string) (bool, error) {
	if err := s.CreateUser(ctx, sessionID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO badges (session_id, badge) VALUES (?, ?) ON CONFLICT (session_id, badge) DO NOTHING`, sessionID, badge)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetBadges(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT badge FROM badges WHERE session_id = ? ORDER BY awarded_at, badge`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	defer rows.Close()

	badges := []string{}
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
		}
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return badges, nil
}

func (s *SQLiteStore) ListTopScores(ctx context.Context, limit int) ([]internal.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, score, total_guesses, correct_guesses, created_at
		FROM users ORDER BY score DESC, created_at ASC, session_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	defer rows.Close()

	users := []internal.User{}
	for rows.Next() {
		var u internal.User
		if err := rows.Scan(&u.SessionID, &u.Score, &u.TotalGuesses, &u.CorrectGuesses, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return users, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/migrations"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore migrates the schema and opens a connection pool.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	if err := migrations.MigratePostgres(connString); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (pg *PostgresStore) FindUser(ctx context.Context, sessionID string) (internal.User, error) {
	user := internal.User{SessionID: sessionID}

	row := pg.pool.QueryRow(ctx, `SELECT score, total_guesses, correct_guesses, correct_ai_guesses, correct_human_guesses, created_at
		FROM users WHERE session_id = $1`, sessionID)
	err := row.Scan(&user.Score, &user.TotalGuesses, &user.CorrectGuesses, &user.CorrectAIGuesses, &user.CorrectHumanGuesses, &user.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return internal.User{}, ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return internal.User{}, err
		default:
			return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
		}
	}

	badges, err := pg.GetBadges(ctx, sessionID)
	if err != nil {
		return internal.User{}, err
	}
	user.Badges = badges
	return user, nil
}

func (pg *PostgresStore) CreateUser(ctx context.Context, sessionID string) error {
	_, err := pg.pool.Exec(ctx, `INSERT INTO users (session_id) VALUES ($1) ON CONFLICT (session_id) DO NOTHING`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return nil
}

func (pg *PostgresStore) AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error) {
	score, correctAI, correctHuman := guessDeltas(g)
	user := internal.User{SessionID: sessionID}

	err := pgx.BeginFunc(ctx, pg.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users (session_id) VALUES ($1) ON CONFLICT (session_id) DO NOTHING`, sessionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO guesses (session_id, partner_id, guess, correct) VALUES ($1, $2, $3, $4)`,
			sessionID, g.PartnerID, g.Guess, g.Correct); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `UPDATE users SET
				score = score + $2,
				total_guesses = total_guesses + 1,
				correct_guesses = correct_guesses + $2,
				correct_ai_guesses = correct_ai_guesses + $3,
				correct_human_guesses = correct_human_guesses + $4
			WHERE session_id = $1
			RETURNING score, total_guesses, correct_guesses, correct_ai_guesses, correct_human_guesses, created_at`,
			sessionID, score, correctAI, correctHuman)
		return row.Scan(&user.Score, &user.TotalGuesses, &user.CorrectGuesses, &user.CorrectAIGuesses, &user.CorrectHumanGuesses, &user.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// foreign_key_violation: the user row vanished mid-transaction
			return internal.User{}, fmt.Errorf("%w: %w", ErrUserNotFound, err)
		}
		return internal.User{}, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}

	badges, err := pg.GetBadges(ctx, sessionID)
	if err != nil {
		return internal.User{}, err
	}
	user.Badges = badges
	return user, nil
}

func (pg *PostgresStore) AwardBadge(ctx context.Context, sessionID, badge string) (bool, error) {
	if err := pg.CreateUser(ctx, sessionID); err != nil {
		return false, err
	}
	tag, err := pg.pool.Exec(ctx, `INSERT INTO badges (session_id, badge) VALUES ($1, $2)`, sessionID, badge)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is the PostgreSQL error code for unique_violation
			if pgErr.Code == "23505" {
				return false, nil
			}
		}
		return false, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (pg *PostgresStore) GetBadges(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := pg.pool.Query(ctx, `SELECT badge FROM badges WHERE session_id = $1 ORDER BY awarded_at, badge`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	badges, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if badges == nil {
		badges = []string{}
	}
	return badges, nil
}

func (pg *PostgresStore) ListTopScores(ctx context.Context, limit int) ([]internal.User, error) {
	rows, err := pg.pool.Query(ctx, `SELECT session_id, score, total_guesses, correct_guesses, created_at
		FROM users ORDER BY score DESC, created_at ASC, session_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (internal.User, error) {
		var u internal.User
		err := row.Scan(&u.SessionID, &u.Score, &u.TotalGuesses, &u.CorrectGuesses, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	if users == nil {
		users = []internal.User{}
	}
	return users, nil
}

func (pg *PostgresStore) Close() error {
	pg.pool.Close()
	return nil
}

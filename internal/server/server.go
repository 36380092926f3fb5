package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/turing-backend/internal"
	"github.com/scythe504/turing-backend/internal/config"
	"github.com/scythe504/turing-backend/internal/game"
)

// Records is the read side of the record store used by the HTTP endpoints.
type Records interface {
	GetBadges(ctx context.Context, sessionID string) ([]string, error)
	ListTopScores(ctx context.Context, limit int) ([]internal.User, error)
}

type Server struct {
	cfg       *config.Config
	coord     *game.Coordinator
	records   Records
	startTime time.Time
}

func NewServer(cfg *config.Config, coord *game.Coordinator, records Records) *Server {
	return &Server{
		cfg:       cfg,
		coord:     coord,
		records:   records,
		startTime: time.Now(),
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("[Server] listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[Server] shutdown")
	}
	log.Info().Msg("[Server] stopped")
	return nil
}

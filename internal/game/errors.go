package game

import "errors"

var (
	ErrInvalidSession     = errors.New("invalid session")
	ErrDuplicateSession   = errors.New("duplicate session")
	ErrNoPartner          = errors.New("no partner assigned")
	ErrStalePartnership   = errors.New("stale partnership")
	ErrPartnerUnreachable = errors.New("partner unreachable")
	ErrAlreadyPaired      = errors.New("session already paired")
	ErrRateLimited        = errors.New("rate limited")
	ErrBadRequest         = errors.New("bad request")
	ErrPersistence        = errors.New("persistence failed")
	ErrStopped            = errors.New("coordinator stopped")
)

// errorCode maps an error to the stable code sent to clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, ErrDuplicateSession):
		return "duplicate_session"
	case errors.Is(err, ErrNoPartner):
		return "no_partner"
	case errors.Is(err, ErrStalePartnership):
		return "stale_partnership"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}

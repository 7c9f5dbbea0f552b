package join

import (
	"errors"

	"github.com/airstudent2/Tournament-200-26/internal/capacity"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrProfileMissing = errors.New("profile_missing")
	ErrUserBlocked    = errors.New("user_blocked")
	ErrAlreadyJoined  = errors.New("already_joined")

	ErrTournamentFull     = capacity.ErrTournamentFull
	ErrTournamentNotFound = capacity.ErrTournamentNotFound
	ErrTournamentClosed   = capacity.ErrTournamentClosed
	ErrInsufficientFunds  = ledger.ErrInsufficientFunds
	ErrStoreUnavailable   = store.ErrUnavailable
)

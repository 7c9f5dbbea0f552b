package tournament

import (
	"github.com/airstudent2/Tournament-200-26/internal/capacity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
)

var (
	ErrInvalidRequest     = join.ErrInvalidRequest
	ErrTournamentNotFound = capacity.ErrTournamentNotFound
)

package account

import (
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
)

var (
	ErrInvalidRequest = join.ErrInvalidRequest
	ErrProfileMissing = join.ErrProfileMissing
	ErrInvalidAmount  = ledger.ErrInvalidAmount
)

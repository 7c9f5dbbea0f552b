package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorStatuses is checked in order; the first match wins.
var errorStatuses = []struct {
	err    error
	status int
}{
	{join.ErrInvalidRequest, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{identity.ErrUnauthorized, http.StatusUnauthorized},
	{join.ErrProfileMissing, http.StatusNotFound},
	{join.ErrUserBlocked, http.StatusForbidden},
	{join.ErrTournamentNotFound, http.StatusNotFound},
	{join.ErrTournamentClosed, http.StatusConflict},
	{join.ErrTournamentFull, http.StatusConflict},
	{join.ErrAlreadyJoined, http.StatusConflict},
	{join.ErrInsufficientFunds, http.StatusPaymentRequired},
	{ledger.ErrWalletNotFound, http.StatusNotFound},
	{ledger.ErrBalanceOverflow, http.StatusUnprocessableEntity},
	{withdrawal.ErrBelowMinimum, http.StatusUnprocessableEntity},
	{withdrawal.ErrInvalidTransition, http.StatusConflict},
	{withdrawal.ErrNotFound, http.StatusNotFound},
	{store.ErrUnavailable, http.StatusServiceUnavailable},
	{store.ErrNotFound, http.StatusNotFound},
}

// classify returns the status and snake_case code for err.
func classify(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func errorCode(err error) string {
	_, code := classify(err)
	return code
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("code", code).Msg("request failed")
	}
	WriteHTTPError(w, status, code)
}

// decodeJSON reads a size-limited body into v and runs struct validation.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", join.ErrInvalidRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", join.ErrInvalidRequest, err)
	}
	return nil
}

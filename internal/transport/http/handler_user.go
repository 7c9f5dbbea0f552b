package httptransport

import (
	"net/http"

	appaccount "github.com/airstudent2/Tournament-200-26/internal/app/account"
	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/go-chi/chi/v5"
)

type UserHandlers struct {
	accounts    *appaccount.Service
	joins       *join.Orchestrator
	withdrawals *withdrawal.Service
}

func NewUserHandlers(accounts *appaccount.Service, joins *join.Orchestrator, withdrawals *withdrawal.Service) *UserHandlers {
	return &UserHandlers{accounts: accounts, joins: joins, withdrawals: withdrawals}
}

func (h *UserHandlers) SaveProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := mustUserID(r)
		var req appaccount.ProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp, err := h.accounts.SaveProfile(r.Context(), uid, req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		status := http.StatusOK
		if resp.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, resp)
	}
}

func (h *UserHandlers) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.accounts.Me(r.Context(), mustUserID(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func (h *UserHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.accounts.History(r.Context(), mustUserID(r), limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *UserHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricJoinRequestsTotal.Add(1)
		m, err := h.joins.Join(r.Context(), mustUserID(r), chi.URLParam(r, "tournament_id"))
		if err != nil {
			metricJoinErrorsTotal.Add(errorCode(err), 1)
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func (h *UserHandlers) RequestWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricWithdrawalRequestsTotal.Add(1)
		var req withdrawal.Request
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		wd, err := h.withdrawals.RequestWithdrawal(r.Context(), mustUserID(r), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, wd)
	}
}

func (h *UserHandlers) Withdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wd, err := h.withdrawals.Get(r.Context(), chi.URLParam(r, "withdrawal_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if wd.UID != mustUserID(r) {
			WriteHTTPError(w, http.StatusNotFound, withdrawal.ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, wd)
	}
}

// mustUserID is only called behind UserAuthMiddleware.
func mustUserID(r *http.Request) string {
	uid, _ := identity.UserIDFrom(r.Context())
	return uid
}

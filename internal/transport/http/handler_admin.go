package httptransport

import (
	"context"
	"net/http"
	"time"

	appaccount "github.com/airstudent2/Tournament-200-26/internal/app/account"
	apptournament "github.com/airstudent2/Tournament-200-26/internal/app/tournament"
	"github.com/airstudent2/Tournament-200-26/internal/reconcile"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/go-chi/chi/v5"
)

type DecisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note" validate:"max=256"`
}

type AdminHandlers struct {
	rs          store.RecordStore
	accounts    *appaccount.Service
	tournaments *apptournament.Service
	withdrawals *withdrawal.Service
	reconciler  *reconcile.Reconciler
}

func NewAdminHandlers(rs store.RecordStore, accounts *appaccount.Service, tournaments *apptournament.Service, withdrawals *withdrawal.Service, reconciler *reconcile.Reconciler) *AdminHandlers {
	return &AdminHandlers{
		rs:          rs,
		accounts:    accounts,
		tournaments: tournaments,
		withdrawals: withdrawals,
		reconciler:  reconciler,
	}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.rs.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
	}
}

func (h *AdminHandlers) CreateTournament() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apptournament.CreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		t, err := h.tournaments.Create(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func (h *AdminHandlers) EditTournament() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apptournament.EditRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		t, err := h.tournaments.Edit(r.Context(), chi.URLParam(r, "tournament_id"), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *AdminHandlers) Roster() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.tournaments.Roster(r.Context(), chi.URLParam(r, "tournament_id"), limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) BlockUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appaccount.BlockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		u, err := h.accounts.SetBlocked(r.Context(), chi.URLParam(r, "uid"), req.Blocked)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func (h *AdminHandlers) Credit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appaccount.CreditRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		entry, err := h.accounts.Credit(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *AdminHandlers) Settings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			st, err := h.withdrawals.Settings(r.Context())
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}
		var st store.Settings
		if err := decodeJSON(r, &st); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := h.withdrawals.SaveSettings(r.Context(), st); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *AdminHandlers) DecideWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DecisionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
		wd, err := h.withdrawals.Decide(r.Context(), chi.URLParam(r, "withdrawal_id"), req.Approve, req.Note)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wd)
	}
}

func (h *AdminHandlers) Reconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := h.reconciler.Run(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	apptournament "github.com/airstudent2/Tournament-200-26/internal/app/tournament"
	"github.com/airstudent2/Tournament-200-26/internal/changefeed"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

type PublicHandlers struct {
	tournaments *apptournament.Service
	hub         *changefeed.Hub
}

func NewPublicHandlers(tournaments *apptournament.Service, hub *changefeed.Hub) *PublicHandlers {
	return &PublicHandlers{tournaments: tournaments, hub: hub}
}

func (h *PublicHandlers) Tournaments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.tournaments.List(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *PublicHandlers) Tournament() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.tournaments.Get(r.Context(), chi.URLParam(r, "tournament_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (h *PublicHandlers) Members() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.tournaments.Members(r.Context(), chi.URLParam(r, "tournament_id"), limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Events streams committed changes for one tournament. scope=members follows
// the membership records instead of the tournament record itself.
func (h *PublicHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid := chi.URLParam(r, "tournament_id")
		if _, err := h.tournaments.Get(r.Context(), tid); err != nil {
			writeDomainError(w, r, err)
			return
		}
		topic := store.TournamentKey(tid)
		fw := &feedWriter{w: w}
		if r.URL.Query().Get("scope") == "members" {
			topic = store.MembershipPrefix(tid)
			fw.project = publicMemberChange
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_unsupported")
			return
		}
		changefeed.SetSSEHeaders(w)
		w.WriteHeader(http.StatusOK)

		sub := h.hub.Subscribe(topic)
		defer sub.Cancel()
		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		if last := r.Header.Get("Last-Event-ID"); last != "" {
			fw.resumeAfter(last)
			for _, ev := range h.hub.ReplayAfter(topic, last) {
				if err := fw.write(ev); err != nil {
					return
				}
			}
		}
		flusher.Flush()

		if err := streamChanges(r.Context(), fw, flusher, sub); err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Str("topic", topic).Msg("sse stream ended")
		}
	}
}

// feedWriter writes changes as SSE frames. Event ids grow monotonically, so
// anything at or below the last id sent is a change the replay already
// delivered and is skipped.
type feedWriter struct {
	w       http.ResponseWriter
	project func(changefeed.Change) changefeed.Change
	lastID  int64
}

func (fw *feedWriter) resumeAfter(id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		fw.lastID = n
	}
}

func (fw *feedWriter) write(ev changefeed.Change) error {
	if id, err := strconv.ParseInt(ev.EventID, 10, 64); err == nil {
		if id <= fw.lastID {
			return nil
		}
		fw.lastID = id
	}
	if fw.project != nil {
		ev = fw.project(ev)
	}
	return changefeed.WriteSSE(fw.w, ev.Op, ev, ev.EventID)
}

// publicMemberChange strips contact and payment fields from a membership
// change before it leaves the server.
func publicMemberChange(ev changefeed.Change) changefeed.Change {
	data, err := apptournament.PublicMemberJSON(ev.Data)
	if err != nil {
		data = nil
	}
	ev.Data = data
	return ev
}

func streamChanges(ctx context.Context, fw *feedWriter, flusher http.Flusher, sub *changefeed.Subscription) error {
	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := fw.write(ev); err != nil {
				return err
			}
			flusher.Flush()
		case <-ping.C:
			if err := changefeed.WriteSSE(fw.w, "ping", map[string]any{"ts": time.Now().UnixMilli()}, ""); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

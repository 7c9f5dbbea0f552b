package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	appaccount "github.com/airstudent2/Tournament-200-26/internal/app/account"
	apptournament "github.com/airstudent2/Tournament-200-26/internal/app/tournament"
	"github.com/airstudent2/Tournament-200-26/internal/changefeed"
	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/reconcile"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Deps carries the services the router exposes.
type Deps struct {
	Store       store.RecordStore
	Hub         *changefeed.Hub
	Identity    identity.Provider
	Accounts    *appaccount.Service
	Tournaments *apptournament.Service
	Joins       *join.Orchestrator
	Withdrawals *withdrawal.Service
	Reconciler  *reconcile.Reconciler
}

func NewRouter(d Deps, cfg config.ServerConfig) *chi.Mux {
	publicHandlers := NewPublicHandlers(d.Tournaments, d.Hub)
	userHandlers := NewUserHandlers(d.Accounts, d.Joins, d.Withdrawals)
	adminHandlers := NewAdminHandlers(d.Store, d.Accounts, d.Tournaments, d.Withdrawals, d.Reconciler)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/tournaments", publicHandlers.Tournaments())
		r.Get("/tournaments/{tournament_id}", publicHandlers.Tournament())
		r.Get("/tournaments/{tournament_id}/members", publicHandlers.Members())
		r.Get("/tournaments/{tournament_id}/events", publicHandlers.Events())

		r.Group(func(r chi.Router) {
			r.Use(UserAuthMiddleware(d.Identity))
			r.Put("/profile", userHandlers.SaveProfile())
			r.Get("/me", userHandlers.Me())
			r.Get("/wallet/history", userHandlers.History())
			r.Post("/tournaments/{tournament_id}/join", userHandlers.Join())
			r.Post("/withdrawals", userHandlers.RequestWithdrawal())
			r.Get("/withdrawals/{withdrawal_id}", userHandlers.Withdrawal())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/tournaments", adminHandlers.CreateTournament())
			r.Patch("/tournaments/{tournament_id}", adminHandlers.EditTournament())
			r.Get("/tournaments/{tournament_id}/members", adminHandlers.Roster())
			r.Post("/users/{uid}/block", adminHandlers.BlockUser())
			r.Post("/credit", adminHandlers.Credit())
			r.Get("/settings", adminHandlers.Settings())
			r.Put("/settings", adminHandlers.Settings())
			r.Post("/withdrawals/{withdrawal_id}/decision", adminHandlers.DecideWithdrawal())
			r.Post("/reconcile", adminHandlers.Reconcile())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appaccount "github.com/airstudent2/Tournament-200-26/internal/app/account"
	apptournament "github.com/airstudent2/Tournament-200-26/internal/app/tournament"
	"github.com/airstudent2/Tournament-200-26/internal/capacity"
	"github.com/airstudent2/Tournament-200-26/internal/catalog"
	"github.com/airstudent2/Tournament-200-26/internal/changefeed"
	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/identity"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/logging"
	"github.com/airstudent2/Tournament-200-26/internal/reconcile"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	httptransport "github.com/airstudent2/Tournament-200-26/internal/transport/http"
	"github.com/airstudent2/Tournament-200-26/internal/withdrawal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const jwtIssuer = "tourney"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Server.StoreBackend).Msg("store init failed")
	}
	defer backend.Close()
	if err := backend.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("store ping failed")
	}

	pub := events.Publisher(events.Noop{})
	if cfg.Server.NATSURL != "" {
		np, err := events.ConnectNATS(cfg.Server.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect failed")
		}
		defer np.Close()
		pub = np
	}

	hub := changefeed.NewHub(1000)
	defer hub.Close()
	rs := changefeed.Wrap(backend, hub)

	comp := compensate.NewRunner(cfg.Saga, pub)
	led := ledger.New(rs, comp)
	cat := catalog.New(rs, cfg.Saga.CatalogTTL)
	reconciler := reconcile.New(rs, led, comp, cfg.Saga.ReconcileGrace)

	idp, err := identity.NewJWTProvider(cfg.Server.JWTSecret, jwtIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("identity init failed")
	}

	r := httptransport.NewRouter(httptransport.Deps{
		Store:       rs,
		Hub:         hub,
		Identity:    idp,
		Accounts:    appaccount.NewService(rs, led, cfg.Saga.SignupBonus),
		Tournaments: apptournament.NewService(rs, cat),
		Joins:       join.NewOrchestrator(rs, capacity.NewManager(rs), led, comp, pub),
		Withdrawals: withdrawal.NewService(rs, led, comp, pub, cfg.Saga),
		Reconciler:  reconciler,
	}, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("backend", cfg.Server.StoreBackend).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return cat.Watch(gctx, hub) })
	g.Go(func() error {
		return reconcile.NewScheduler(reconciler, cfg.Saga.ReconcileInterval).Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.RecordStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	case config.BackendRedis:
		return store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	default:
		if cfg.AutoMigrate {
			if err := store.Migrate(cfg.PostgresDSN); err != nil {
				return nil, err
			}
			log.Info().Msg("migrations applied")
		}
		return store.NewPostgres(ctx, cfg.PostgresDSN)
	}
}

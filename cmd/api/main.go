package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"commissionflow/catalog"
	"commissionflow/commission"
	"commissionflow/config"
	"commissionflow/db"
	"commissionflow/httpapi"
	"commissionflow/identity"
	"commissionflow/localstore"
	"commissionflow/pgstore"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, cleanup, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap provider: %v", err)
	}
	defer cleanup()

	store := commission.NewStore(provider, identity.NewAnonymousEnsurer())
	if err := store.Start(ctx, func(err error) {
		log.Printf("store: provider stream: %v", err)
	}); err != nil {
		log.Fatalf("start store: %v", err)
	}
	defer store.Close()

	reconciler := commission.NewReconciler(defaultOwners(cfg))
	gate := identity.NewGate(
		identity.SharedSecret(cfg.OperatorPhraseHash),
		identity.Operator{OwnerID: cfg.OperatorID, Name: cfg.OperatorName},
		cfg.JWTSecret,
	)

	handler := httpapi.NewHandler(store, reconciler, gate, cfg.SubmitTimeout.Std())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s (backend=%s)", cfg.HTTPAddr, cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// buildProvider picks the persistence backend from config: a Postgres pool
// with the NOTIFY stream, or a local SQLite file for single-node setups.
func buildProvider(ctx context.Context, cfg config.Config) (commission.Provider, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		provider, err := pgstore.New(pool, cfg.AppID)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := provider.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return provider, pool.Close, nil
	case config.BackendLocal:
		provider, err := localstore.Open(cfg.DataDir, cfg.AppID)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() { provider.Close() }, nil
	default:
		return nil, nil, errors.New("unknown backend: " + string(cfg.Backend))
	}
}

func defaultOwners(cfg config.Config) map[catalog.Type]identity.Operator {
	owners := make(map[catalog.Type]identity.Operator, len(cfg.DefaultOwners))
	for t, o := range cfg.DefaultOwners {
		owners[t] = identity.Operator{OwnerID: o.ID, Name: o.Name}
	}
	return owners
}

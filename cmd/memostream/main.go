package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kimhsiao/memostream/internal/config"
	"github.com/kimhsiao/memostream/internal/engine"
	"github.com/kimhsiao/memostream/internal/identity"
	"github.com/kimhsiao/memostream/internal/localstore"
	"github.com/kimhsiao/memostream/internal/logging"
	"github.com/kimhsiao/memostream/internal/remote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(os.Stderr, "info")
		logging.Error("failed to load configuration", err)
		os.Exit(1)
	}

	logging.Init(os.Stdout, cfg.Log.Level)
	logging.Info("starting memostream", map[string]interface{}{
		"addr":     cfg.Server.Addr,
		"data_dir": cfg.Local.DataDir,
	})

	if err := run(cfg); err != nil {
		logging.Error("memostream exited with error", err)
		os.Exit(1)
	}
	logging.Info("memostream stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := localstore.OpenSQLite(cfg.Local.DataDir)
	if err != nil {
		return err
	}
	defer local.Close()

	conn, err := remote.NewPostgres(cfg.Remote.PostgresDSN, cfg.Remote.NotifyChannel)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.EnsureSchema(ctx); err != nil {
		return err
	}

	provider := identity.NewTokenProvider([]byte(cfg.Auth.JWTSecret))

	eng := engine.New(local, conn, provider, engine.Options{Debounce: cfg.Sync.Debounce})
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Close()

	hub := newWSHub()
	eng.Records().SetOnChange(func() {
		hub.BroadcastView(eng.View())
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newAPIServer(eng, provider, hub).routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.run()
		return nil
	})

	g.Go(func() error {
		logging.Info("http server listening", map[string]interface{}{"addr": cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		hub.stop()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"trademcp/internal/api"
	"trademcp/internal/app"
	"trademcp/internal/config"
	"trademcp/internal/mcpserver"
	"trademcp/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Logs go to stderr so stdout stays reserved for the stdio transport.
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
	util.SetDefault(logger)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("starting: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway := mcpserver.New(a.Engine, app.Version)
	ops := api.NewServer(cfg.Server, a.Engine, a.Metrics)

	logger.Info("trademcp-server starting",
		"version", app.Version,
		"transport", cfg.Server.Transport,
		"tools", len(gateway.ToolNames()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The stdio transport ends when the client closes stdin; take the
		// ops listeners down with it.
		defer cancel()
		return gateway.Serve(gctx, cfg.Server)
	})
	g.Go(func() error {
		return ops.ListenAndServe(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		a.Close()
		log.Fatalf("server error: %v", err)
	}
	logger.Info("trademcp-server stopped")
}

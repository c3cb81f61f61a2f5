package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/insurance-validator/internal/app"
	"github.com/joseph-ayodele/insurance-validator/internal/async"
	"github.com/joseph-ayodele/insurance-validator/internal/common"
	"github.com/joseph-ayodele/insurance-validator/internal/httpapi"
	"github.com/joseph-ayodele/insurance-validator/internal/ingest"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := common.LoadDotEnv(); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// Without DB_URL the daemon still analyzes, but nothing is stored.
	persist := cfg.Database.DSN != ""
	if err := cfg.Validate(persist); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Persist: persist}, logger)
	if err != nil {
		logger.Error("failed to build analysis stack", "error", err)
		os.Exit(1)
	}

	err = serve(ctx, cfg, a, logger)
	a.Close()
	if err != nil {
		logger.Error("validatord stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("validatord stopped")
}

func serve(ctx context.Context, cfg *common.Config, a *app.App, logger *slog.Logger) error {
	if db := a.DB(); db != nil {
		if err := db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
			return fmt.Errorf("database ping: %w", err)
		}
	}
	return run(ctx, cfg, a, logger)
}

// run serves until ctx is done. Listeners and the inbox are set up before
// any goroutine starts, so a setup failure returns with nothing running.
func run(ctx context.Context, cfg *common.Config, a *app.App, logger *slog.Logger) error {
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("http listen %s: %w", cfg.Server.HTTPAddr, err)
	}
	var inbox *ingest.Inbox
	if cfg.Ingest.InboxDir != "" {
		if inbox, err = ingest.NewInbox(cfg.Ingest.InboxDir, a.Analysis, cfg.Ingest.Debounce, logger); err != nil {
			grpcLis.Close()
			httpLis.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Handler:           httpapi.NewRouter(httpapi.ConfigFromApp(cfg.Server), a.Analysis, a.Reports, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("http listening", "addr", httpLis.Addr().String(), "persist", a.Reports != nil)
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcSrv)
	g.Go(func() error {
		logger.Info("grpc listening", "addr", grpcLis.Addr().String())
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	var queue *async.WorkerQueue
	if inbox != nil {
		queue = async.NewWorkerQueue(inbox.Handle, logger,
			async.WithWorkers(cfg.Ingest.Workers),
			async.WithJobTimeout(cfg.Server.RequestTimeout),
		)
		g.Go(func() error { return inbox.Run(gctx, queue) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if queue != nil {
			queue.Shutdown(sctx)
		}
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/sundew/internal/bootstrap"
	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/monitor"
	"github.com/jmerrifield20/sundew/internal/session"
	"github.com/jmerrifield20/sundew/internal/storage"
	"github.com/jmerrifield20/sundew/internal/trap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trap listener and the monitor API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Nothing listens until every canary has been validated.
	engine, err := bootstrap.Prepare(cfg, logger)
	if err != nil {
		logger.Error("refusing to start", zap.Error(err))
		return err
	}

	cc, err := cfg.Classifier()
	if err != nil {
		return err
	}
	classifier, err := classify.New(cc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := storage.Open(ctx, cfg.Sinks(), logger)
	if err != nil {
		return fmt.Errorf("open verdict sinks: %w", err)
	}
	logger.Info("verdict sinks opened", zap.Strings("outputs", sinks.Names()))

	tracker := session.New(session.Config{
		IdleTimeout: cfg.Session.IdleTimeout,
		Retention:   cfg.Session.Retention,
		Shards:      cfg.Session.Shards,
	}, classifier, sinks, logger)

	trapSrv := trap.New(engine, tracker, trap.Config{
		MCPPath:        cfg.Server.MCPPath,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ApplyLatency:   cfg.Server.ApplyLatency,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		TrustedProxies: cfg.Server.TrustedProxies,
	}, logger)

	var tokens *monitor.TokenIssuer
	if cfg.Monitor.JWTSecret != "" {
		tokens, err = monitor.NewTokenIssuer(cfg.Monitor.JWTSecret, tokenIssuerName, 0)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("monitor.jwt_secret not set: monitor API is unauthenticated")
	}
	var verdicts monitor.VerdictReader
	if r, ok := sinks.Sink("sqlite").(monitor.VerdictReader); ok {
		verdicts = r
	}
	mon := monitor.New(tracker, engine, verdicts, tokens, monitor.Config{CORSOrigins: cfg.Monitor.CORSOrigins}, logger)

	trapHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           trapSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	monHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitor.Port),
		Handler:           mon.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("trap listening", zap.Int("port", cfg.Server.Port), zap.String("mcp_path", cfg.Server.MCPPath))
		return listen(trapHTTP)
	})
	g.Go(func() error {
		logger.Info("monitor listening", zap.Int("port", cfg.Monitor.Port))
		return listen(monHTTP)
	})
	g.Go(func() error {
		tracker.Run(gctx, cfg.Session.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down sundew...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(trapHTTP.Shutdown(sctx), monHTTP.Shutdown(sctx))
	})
	runErr := g.Wait()

	// Listeners are closed; no event can race the final sweep.
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tracker.FinalizeAll(sctx); err != nil {
		logger.Error("final verdict flush incomplete", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	if err := sinks.Close(); err != nil {
		logger.Error("closing verdict sinks", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}

	logger.Info("sundew stopped")
	return runErr
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"splitverify/internal/adapters/fileingest"
	httpadapter "splitverify/internal/adapters/http"
	"splitverify/internal/adapters/memory"
	"splitverify/internal/config"
	"splitverify/internal/logging"
	"splitverify/internal/metrics"
	"splitverify/internal/ports"
	"splitverify/internal/services/recorder"
	"splitverify/internal/services/sessions"
	"splitverify/internal/workers/ingestrunner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Wire adapters to ports
	store := memory.NewSessions()
	jobs := memory.NewJobs()
	var _ ports.SessionStore = store
	var _ ports.JobRepository = jobs
	var ingestor ports.Ingestor = fileingest.New(cfg.MaxRows)

	processor := ingestrunner.SheetProcessor{
		Ingestor: ingestor,
		Sessions: store,
		Metrics:  m,
		Logger:   logger.Named("ingest"),
		Timeout:  cfg.IngestTimeout.Duration,
	}
	svc := sessions.New(store, jobs, processor, sessions.Options{
		TaxRate:  cfg.TaxRate,
		Recorder: recorder.New(),
		Metrics:  m,
		Logger:   logger.Named("sessions"),
	})

	srv := httpadapter.New(svc, httpadapter.Options{
		Gatherer:       reg,
		Limiter:        httpadapter.NewRateLimiter(cfg.UploadRatePerMinute, cfg.UploadBurst),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger.Named("http"),
	})
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.IngestWorkers > 0 {
		g.Go(func() error {
			ingestrunner.Run(ctx, jobs, processor, cfg.IngestWorkers, cfg.IngestPollInterval.Duration, logger.Named("ingest"))
			return nil
		})
		logger.Info("ingest workers started", zap.Int("workers", cfg.IngestWorkers))
	}
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Float64("tax_rate", cfg.TaxRate))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

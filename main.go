package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/auth"
	"github.com/example/insect-id/internal/config"
	"github.com/example/insect-id/internal/grpchealth"
	"github.com/example/insect-id/internal/handlers"
	"github.com/example/insect-id/internal/identifier"
	"github.com/example/insect-id/internal/logging"
	"github.com/example/insect-id/internal/metrics"
	"github.com/example/insect-id/internal/store"
	"github.com/example/insect-id/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if len(os.Args) > 1 {
		if err := runCommand(context.Background(), cfg, logger, os.Args[1:], os.Stdout); err != nil {
			logger.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		}
		return
	}

	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	kv, closeKV, err := openKV(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	st := store.New(kv, cfg.HistoryLimit, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	uc, err := buildUseCase(context.Background(), cfg, st, recorder, logger)
	if err != nil {
		return err
	}

	if cfg.GRPCHealthAddr != "" {
		stopHealth, err := startHealth(ctx, cfg.GRPCHealthAddr, st, logger)
		if err != nil {
			return err
		}
		defer stopHealth()
	}

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)

	handlers.RegisterRoutes(r, uc, authMiddleware, handlers.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		ShareBaseURL:   cfg.ShareBaseURL,
		Metrics:        recorder,
		MetricsHandler: recorder.Handler(),
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	logger.Info("insect identifier listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store_backend", string(cfg.StoreBackend)))
	return serveHTTPServer(server, cfg.ShutdownTimeout, logger)
}

// buildUseCase wires the identifier and the generation tracker around st.
// Without an API key every request is answered from the fallback catalog.
func buildUseCase(ctx context.Context, cfg *config.Config, st *store.Store, recorder metrics.Recorder, logger *zap.Logger) (*usecase.IdentificationUseCase, error) {
	var generator identifier.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := identifier.NewGeminiGenerator(ctx, identifier.Options{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			Endpoint:        cfg.GeminiEndpoint,
			Temperature:     cfg.GeminiTemperature,
			TopK:            cfg.GeminiTopK,
			TopP:            cfg.GeminiTopP,
			MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, serving fallback identifications only")
	}

	client := identifier.NewClient(generator, cfg.GeminiTimeout, logger)

	ttl := 4 * cfg.GeminiTimeout
	if ttl < 5*time.Minute {
		ttl = 5 * time.Minute
	}
	stores := func(deviceID string) usecase.HistoryStore { return st.ForDevice(deviceID) }
	return usecase.NewIdentificationUseCase(client, stores, usecase.NewGenerationTracker(ttl), recorder, logger), nil
}

// startHealth serves the gRPC health protocol until the returned func is called.
func startHealth(ctx context.Context, addr string, st *store.Store, logger *zap.Logger) (func(), error) {
	health := grpchealth.NewServer(st, logger)
	health.Refresh(ctx)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go health.Watch(watchCtx, 15*time.Second)
	go func() {
		if err := health.Serve(lis); err != nil {
			logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()

	return func() {
		stopWatch()
		health.Shutdown()
	}, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

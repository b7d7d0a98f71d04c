// cmd/mockapi/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lendloop/internal/catalog"
	"lendloop/internal/circulation"
	"lendloop/internal/config"
	"lendloop/internal/membership"
	"lendloop/internal/mockapi"
	"lendloop/internal/platform/logger"
	"lendloop/internal/platform/tracer"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(logger.Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracer.Init(ctx, tracer.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "lendloop-mockapi",
		Environment: cfg.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal("failed to initialise tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	listings := catalog.NewService()
	orders := circulation.NewService(listings, log)
	members := membership.NewService(membership.WithRateLimit(rate.Limit(cfg.MockAPI.LoginRate), cfg.MockAPI.LoginBurst))
	srv := mockapi.NewServer(listings, orders, members, mockapi.WithLogger(log))

	mc := cfg.MockAPI
	if mc.Latency > 0 {
		srv.Faults().Inject(mockapi.Fault{Type: mockapi.FaultLatency, Latency: mc.Latency, Jitter: mc.Jitter})
	}
	if mc.FailureRate > 0 {
		srv.Faults().Inject(mockapi.Fault{Type: mockapi.FaultFailure, Probability: mc.FailureRate})
	}

	httpServer := &http.Server{
		Addr:              ":" + mc.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("mock marketplace listening",
		zap.String("addr", httpServer.Addr),
		zap.Duration("latency", mc.Latency),
		zap.Float64("failure_rate", mc.FailureRate),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("mock marketplace stopped", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

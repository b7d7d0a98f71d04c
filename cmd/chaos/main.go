// cmd/chaos/main.go
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lendloop/internal/app"
	"lendloop/internal/chaos"
	"lendloop/internal/config"
	"lendloop/internal/membership"
	"lendloop/internal/mockapi"
	"lendloop/internal/platform/logger"
	"lendloop/internal/session"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	duration, err := time.ParseDuration(getEnv("CHAOS_DURATION", "10s"))
	if err != nil {
		log.Fatal("invalid CHAOS_DURATION", zap.Error(err))
	}

	// The marketplace runs in process so the experiments can inject its faults.
	srv := mockapi.New(mockapi.WithLogger(log.Named("mockapi")))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}
	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = httpServer.Serve(ln) }()
	defer func() { _ = httpServer.Close() }()

	client := app.Wire("http://"+ln.Addr().String()+"/graphql", session.NewMemoryStore(), log.Named("client"))
	if err := signUp(ctx, client); err != nil {
		log.Fatal("failed to sign the probe in", zap.Error(err))
	}

	probe := chaos.NewProbe(client, srv.Faults(), 5)
	if err := probe.Seed(ctx, 3); err != nil {
		log.Fatal("failed to seed listings", zap.Error(err))
	}

	engine := chaos.NewEngine(log)
	engine.RegisterExperiments(probe, duration)

	gameDay := chaos.GameDay{
		Name:      "Client consistency game day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     time.Second,
	}
	if err := engine.ExecuteGameDay(ctx, gameDay, os.Stdout); err != nil {
		log.Fatal("game day failed", zap.Error(err))
	}
}

func signUp(ctx context.Context, a *app.App) error {
	const email, password = "chaos-probe@example.com", "chaos-probe"
	if _, err := a.Session.Register(ctx, membership.Registration{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		FirstName:       "Chaos",
		LastName:        "Probe",
		Address:         "127 Loopback Rd",
		PhoneNumber:     "00000000000",
	}); err != nil {
		return err
	}
	return a.Session.Login(ctx, membership.Credentials{Email: email, Password: password})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-lag/internal/api"
	"github.com/npezzotti/go-lag/internal/auth"
	"github.com/npezzotti/go-lag/internal/config"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/firebase"
	"github.com/npezzotti/go-lag/internal/pebblestore"
	"github.com/npezzotti/go-lag/internal/server"
	"github.com/npezzotti/go-lag/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

// stringSliceFlag collects comma separated values. Values from the
// environment are replaced, not extended, by the first flag occurrence.
type stringSliceFlag struct {
	values []string
	set    bool
}

func (s *stringSliceFlag) String() string {
	return strings.Join(s.values, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	if !s.set {
		s.values = nil
		s.set = true
	}
	s.values = append(s.values, splitList(value)...)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// backend bundles the repositories and authenticator of one storage backend.
type backend struct {
	authn    auth.Authenticator
	profiles database.ProfileRepository
	messages database.MessageRepository
	health   api.Pinger
	close    func() error
}

func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.NewPgRepository(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		authn, err := auth.NewLocal(db, cfg.SigningKey, cfg.SessionTTL)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &backend{authn: authn, profiles: db, messages: db, health: db, close: db.Close}, nil

	case config.BackendEmbedded:
		logger.Printf("opening embedded store in %s", cfg.DataDir)
		db, err := pebblestore.Open(cfg.DataDir, nil)
		if err != nil {
			return nil, fmt.Errorf("store open: %w", err)
		}
		authn, err := auth.NewLocal(db, cfg.SigningKey, cfg.SessionTTL)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &backend{authn: authn, profiles: db, messages: db, health: db, close: db.Close}, nil

	case config.BackendFirebase:
		fb, err := firebase.New(ctx, firebase.Config{
			ProjectID:   cfg.Firebase.ProjectID,
			DatabaseURL: cfg.Firebase.DatabaseURL,
			APIKey:      cfg.Firebase.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return &backend{authn: fb.Auth, profiles: fb.Profiles, messages: fb.Messages, health: fb, close: fb.Close}, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func main() {
	logger := log.New(os.Stderr, "[lag] ", log.LstdFlags)

	if err := config.LoadEnv(".env"); err != nil {
		logger.Fatal("env:", err)
	}

	var (
		opts           config.Options
		allowedOrigins = stringSliceFlag{values: splitList(config.Env("ALLOWED_ORIGINS", ""))}
	)
	flag.StringVar(&opts.ServerAddr, "addr", config.Env("ADDR", "localhost:8000"), "server address")
	flag.StringVar(&opts.Backend, "backend", config.Env("BACKEND", string(config.BackendPostgres)), "storage backend: postgres, embedded or firebase")
	flag.StringVar(&opts.DatabaseDSN, "dsn", config.Env("DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&opts.DataDir, "data-dir", config.Env("DATA_DIR", "data"), "embedded store directory")
	flag.StringVar(&opts.SigningKey, "signing-key", config.Env("SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&opts.Firebase.ProjectID, "firebase-project", config.Env("FIREBASE_PROJECT", ""), "firebase project id")
	flag.StringVar(&opts.Firebase.DatabaseURL, "firebase-database-url", config.Env("FIREBASE_DATABASE_URL", ""), "firebase realtime database url")
	flag.StringVar(&opts.Firebase.APIKey, "firebase-api-key", config.Env("FIREBASE_API_KEY", ""), "firebase web api key")
	flag.DurationVar(&opts.SessionTTL, "session-ttl", config.EnvDuration("SESSION_TTL", auth.DefaultTTL), "session token lifetime")
	flag.Float64Var(&opts.AuthRate, "auth-rate", config.EnvFloat("AUTH_RATE", 5), "requests per second per client on auth endpoints")
	flag.IntVar(&opts.AuthBurst, "auth-burst", config.EnvInt("AUTH_BURST", 10), "burst size per client on auth endpoints")
	flag.Parse()
	opts.AllowedOrigins = allowedOrigins.values

	cfg, err := config.NewConfig(opts)
	if err != nil {
		logger.Fatal("config:", err)
	}

	b, err := openBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Println("backend close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, b.profiles, b.messages, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, b.authn, b.profiles, b.health, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendEmbedded Backend = "embedded"
	BackendFirebase Backend = "firebase"
)

const EnvPrefix = "LAG_"

type FirebaseConfig struct {
	ProjectID   string
	DatabaseURL string
	APIKey      string
}

type Config struct {
	ServerAddr     string
	Backend        Backend
	DatabaseDSN    string
	DataDir        string
	SigningKey     []byte
	AllowedOrigins []string
	Firebase       FirebaseConfig
	SessionTTL     time.Duration
	// AuthRate is the sustained request rate per client on unauthenticated
	// auth endpoints.
	AuthRate  float64
	AuthBurst int
}

// Options carries the raw flag values validated by NewConfig.
type Options struct {
	ServerAddr     string
	Backend        string
	DatabaseDSN    string
	DataDir        string
	SigningKey     string
	AllowedOrigins []string
	Firebase       FirebaseConfig
	SessionTTL     time.Duration
	AuthRate       float64
	AuthBurst      int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("empty key")
	}
	return key, nil
}

func NewConfig(opts Options) (*Config, error) {
	if opts.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	cfg := &Config{
		ServerAddr:     opts.ServerAddr,
		Backend:        Backend(opts.Backend),
		AllowedOrigins: opts.AllowedOrigins,
		SessionTTL:     opts.SessionTTL,
		AuthRate:       opts.AuthRate,
		AuthBurst:      opts.AuthBurst,
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendPostgres
	}

	switch cfg.Backend {
	case BackendPostgres:
		if opts.DatabaseDSN == "" {
			return nil, fmt.Errorf("database DSN cannot be empty")
		}
		cfg.DatabaseDSN = opts.DatabaseDSN
	case BackendEmbedded:
		if opts.DataDir == "" {
			return nil, fmt.Errorf("data directory cannot be empty")
		}
		cfg.DataDir = opts.DataDir
	case BackendFirebase:
		fb := opts.Firebase
		if fb.ProjectID == "" || fb.DatabaseURL == "" || fb.APIKey == "" {
			return nil, fmt.Errorf("firebase project, database URL and API key are required")
		}
		cfg.Firebase = fb
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	// Firebase issues its own ID tokens.
	if cfg.Backend != BackendFirebase {
		if opts.SigningKey == "" {
			return nil, fmt.Errorf("signing secret cannot be empty")
		}

		signingKey, err := decodeSigningSecret(opts.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode signing secret: %w", err)
		}
		cfg.SigningKey = signingKey
	}

	if cfg.SessionTTL < 0 {
		return nil, fmt.Errorf("session TTL cannot be negative")
	}
	if cfg.AuthRate < 0 || cfg.AuthBurst < 0 {
		return nil, fmt.Errorf("auth rate limit cannot be negative")
	}

	return cfg, nil
}

// LoadEnv loads the given dotenv files into the environment. Missing files
// are skipped and variables already set are left untouched.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Env returns the value of LAG_<name>, or fallback when unset.
func Env(name, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		return v
	}
	return fallback
}

func EnvFloat(name string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(Env(name, ""), 64); err == nil {
		return f
	}
	return fallback
}

func EnvInt(name string, fallback int) int {
	if i, err := strconv.Atoi(Env(name, "")); err == nil {
		return i
	}
	return fallback
}

func EnvDuration(name string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(Env(name, "")); err == nil {
		return d
	}
	return fallback
}

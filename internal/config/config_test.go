package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
		fb   = FirebaseConfig{ProjectID: "lag", DatabaseURL: "https://lag.firebaseio.com", APIKey: "api-key"}
	)

	tcases := []struct {
		name string
		opts Options
		err  bool
	}{
		{
			name: "valid postgres config",
			opts: Options{ServerAddr: addr, DatabaseDSN: dsn, SigningKey: key, AllowedOrigins: orig},
		},
		{
			name: "valid embedded config",
			opts: Options{ServerAddr: addr, Backend: "embedded", DataDir: "/tmp/lag", SigningKey: key, AllowedOrigins: orig},
		},
		{
			name: "valid firebase config without signing key",
			opts: Options{ServerAddr: addr, Backend: "firebase", Firebase: fb, AllowedOrigins: orig},
		},
		{
			name: "empty address",
			opts: Options{DatabaseDSN: dsn, SigningKey: key},
			err:  true,
		},
		{
			name: "empty DSN",
			opts: Options{ServerAddr: addr, SigningKey: key},
			err:  true,
		},
		{
			name: "empty data dir",
			opts: Options{ServerAddr: addr, Backend: "embedded", SigningKey: key},
			err:  true,
		},
		{
			name: "incomplete firebase config",
			opts: Options{ServerAddr: addr, Backend: "firebase", Firebase: FirebaseConfig{ProjectID: "lag"}},
			err:  true,
		},
		{
			name: "unknown backend",
			opts: Options{ServerAddr: addr, Backend: "mysql", DatabaseDSN: dsn, SigningKey: key},
			err:  true,
		},
		{
			name: "empty signing key",
			opts: Options{ServerAddr: addr, DatabaseDSN: dsn},
			err:  true,
		},
		{
			name: "invalid signing key",
			opts: Options{ServerAddr: addr, DatabaseDSN: dsn, SigningKey: "invalid_base64"},
			err:  true,
		},
		{
			name: "negative rate",
			opts: Options{ServerAddr: addr, DatabaseDSN: dsn, SigningKey: key, AuthRate: -1},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.opts)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			require.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.opts.ServerAddr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.opts.AllowedOrigins, config.AllowedOrigins, "expected allowed origins to match")
			if config.Backend != BackendFirebase {
				assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
			}
		})
	}

	t.Run("defaults to postgres", func(t *testing.T) {
		config, err := NewConfig(Options{ServerAddr: addr, DatabaseDSN: dsn, SigningKey: key})
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, config.Backend)
		assert.Equal(t, dsn, config.DatabaseDSN)
	})
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("LAG_TEST_ADDR=:9999\nLAG_TEST_RATE=2.5\nLAG_TEST_TTL=1h\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("LAG_TEST_ADDR")
		os.Unsetenv("LAG_TEST_RATE")
		os.Unsetenv("LAG_TEST_TTL")
	})

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), file))

	assert.Equal(t, ":9999", Env("TEST_ADDR", ":8000"))
	assert.Equal(t, ":8000", Env("TEST_UNSET", ":8000"))
	assert.Equal(t, 2.5, EnvFloat("TEST_RATE", 1))
	assert.Equal(t, 7, EnvInt("TEST_UNSET", 7))
	assert.Equal(t, time.Hour, EnvDuration("TEST_TTL", time.Minute))
}

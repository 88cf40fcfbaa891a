package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "DATABASE_URL", "DB_DRIVER", "DB_CONNECT_ATTEMPTS",
		"DB_RETRY_DELAY", "DB_AUTO_MIGRATE", "BODY_LIMIT", "LOG_LEVEL",
		"REQUEST_LOGGING", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	require := require.New(t)
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/sheep")

	cfg, err := Load(nil)
	require.NoError(err)

	require.Equal(DefaultPort, cfg.Port)
	require.Equal(":5000", cfg.Addr())
	require.Equal(DriverPostgres, cfg.Database.Driver)
	require.Equal(int64(DefaultBodyLimit), cfg.BodyLimit)
	require.True(cfg.Database.AutoMigrate)
	require.Zero(cfg.RateLimitRPS)
}

func TestLoadPortFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/sheep")

	for _, tc := range []struct {
		raw  string
		want int
	}{
		{"8080", 8080},
		{" 3001 ", 3001},
		{"1", 1},
		{"65535", 65535},
		{"", DefaultPort},
	} {
		t.Run(tc.raw, func(t *testing.T) {
			t.Setenv("PORT", tc.raw)
			cfg, err := Load(nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, cfg.Port)
		})
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/sheep")

	for _, raw := range []string{"abc", "0", "-1", "70000"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("PORT", raw)
			_, err := Load(nil)
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	for _, tc := range []struct {
		key, value string
	}{
		{"RATE_LIMIT_RPS", "abc"},
		{"RATE_LIMIT_RPS", "-1"},
		{"RATE_LIMIT_BURST", "abc"},
		{"RATE_LIMIT_BURST", "1.5"},
	} {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/sheep")
			t.Setenv(tc.key, tc.value)

			_, err := Load(nil)
			require.ErrorContains(t, err, tc.key)
		})
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load(nil)
	require.True(t, errors.Is(err, ErrMissingDatabaseURL))
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "mongodb://localhost/sheep")
	t.Setenv("DB_DRIVER", "mongo")

	_, err := Load(nil)
	require.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestLoadPrecedence(t *testing.T) {
	require := require.New(t)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte(`
host: 127.0.0.1
port: 7000
body_limit: 2048
enable_request_logging: false
shutdown_grace_period: 3s
rate_limit:
  rps: 10
  burst: 20
database:
  driver: sqlite
  url: file:from-yaml.db
  connect_attempts: 2
  retry_delay: 250ms
`), 0o600))

	cfg, err := Load(&CLIOverrides{ConfigFile: path})
	require.NoError(err)
	require.Equal("127.0.0.1", cfg.Host)
	require.Equal(7000, cfg.Port)
	require.Equal(int64(2048), cfg.BodyLimit)
	require.False(cfg.EnableRequestLogging)
	require.Equal(3*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(10.0, cfg.RateLimitRPS)
	require.Equal(20, cfg.RateLimitBurst)
	require.Equal(DriverSQLite, cfg.Database.Driver)
	require.Equal("file:from-yaml.db", cfg.Database.URL)
	require.Equal(2, cfg.Database.ConnectAttempts)
	require.Equal(250*time.Millisecond, cfg.Database.RetryDelay)

	// env beats YAML
	t.Setenv("PORT", "7100")
	t.Setenv("DATABASE_URL", "file:from-env.db")
	cfg, err = Load(&CLIOverrides{ConfigFile: path})
	require.NoError(err)
	require.Equal(7100, cfg.Port)
	require.Equal("file:from-env.db", cfg.Database.URL)

	// flags beat env
	port := 7200
	cfg, err = Load(&CLIOverrides{ConfigFile: path, Port: &port})
	require.NoError(err)
	require.Equal(7200, cfg.Port)
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/sheep")

	_, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	require.ErrorContains(t, err, "load YAML config")
}

func TestLoadDotEnv(t *testing.T) {
	require := require.New(t)
	clearEnv(t)
	t.Setenv("PORT", "6000")
	// godotenv treats a set-but-empty variable as present
	require.NoError(os.Unsetenv("DATABASE_URL"))

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(os.WriteFile(path, []byte("PORT=9999\nDATABASE_URL=postgres://dotenv/sheep\n"), 0o600))

	require.NoError(LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	cfg, err := Load(nil)
	require.NoError(err)
	require.Equal(6000, cfg.Port, "existing env must not be overridden")
	require.Equal("postgres://dotenv/sheep", cfg.Database.URL)
}

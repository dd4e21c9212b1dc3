package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "SERVER_PORT", "SERVER_HOST", "SERVER_MODE",
	"DB_DRIVER", "MONGODB_URL", "MONGODB_DATABASE",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	"SESSION_CACHE_TTL_SECONDS", "JWT_SECRET", "JWT_EXPIRE_HOURS", "TOKEN_SWEEP_MINUTES", "LOG_DIR", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "microblog", cfg.Database.MongoDatabase)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 300, cfg.Redis.TTLSeconds)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 60, cfg.JWT.SweepMinutes)
	assert.Equal(t, "logs", cfg.Log.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 8080
  mode: release
database:
  driver: postgres
  host: db
  user: blog
  dbname: blog
jwt:
  secret: from-file
  expire_hours: 24
`)
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("SESSION_CACHE_TTL_SECONDS", "60")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 60, cfg.Redis.TTLSeconds)
	assert.Equal(t, "host=db port=5432 user=blog password= dbname=blog sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "localhost:6379", (&RedisConfig{Host: "localhost", Port: 6379}).Addr())
}

func TestLoad_ServerPortWinsOverPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("SERVER_PORT", "5000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing secret", Config{Database: DatabaseConfig{Driver: DriverMemory}}, true},
		{"mongo without url", Config{JWT: JWTConfig{Secret: "s"}, Database: DatabaseConfig{Driver: DriverMongo}}, true},
		{"unknown driver", Config{JWT: JWTConfig{Secret: "s"}, Database: DatabaseConfig{Driver: "sqlite"}}, true},
		{"memory", Config{JWT: JWTConfig{Secret: "s"}, Database: DatabaseConfig{Driver: DriverMemory}}, false},
		{"mongo", Config{JWT: JWTConfig{Secret: "s"}, Database: DatabaseConfig{Driver: DriverMongo, MongoURL: "mongodb://x"}}, false},
		{"postgres", Config{JWT: JWTConfig{Secret: "s"}, Database: DatabaseConfig{Driver: DriverPostgres}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

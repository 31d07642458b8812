package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")

	cfg, err := FromEnv("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "boardroom", cfg.DB.Database)
	assert.Equal(t, "BOARD_EVENTS", cfg.NATS.Stream)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 90*time.Second, cfg.Realtime.HeartbeatTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("DB_NAME", "boardroom_test")
	t.Setenv("WS_HEARTBEAT_TIMEOUT", "45s")

	cfg, err := FromEnv("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "boardroom_test", cfg.DB.Database)
	assert.Equal(t, 45*time.Second, cfg.Realtime.HeartbeatTimeout)
}

func TestFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	_, err := FromEnv("")
	assert.Error(t, err)
}

func TestYAMLOverlayWinsOverEnv(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("PORT", "9000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	overlay := "server:\n  port: 9443\nnats:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o600))

	cfg, err := FromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, 9443, cfg.Server.Port)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "boardroom", cfg.DB.Database, "untouched sections keep env values")
}

func TestDSN(t *testing.T) {
	db := DBConfig{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@h:5433/d?sslmode=require", db.DSN())
}

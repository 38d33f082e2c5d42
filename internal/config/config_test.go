package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/moi-etl/internal/metrics"
)

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: "9090"
logging:
  level: debug
tunables:
  qualify_seconds: 30
  output_ttl: 2h
  tiers:
    excellent: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.HTTPTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, 30.0, cfg.Tunables.QualifySeconds)
	assert.Equal(t, 5.0, cfg.Tunables.PageviewThreshold)
	assert.Equal(t, 2*time.Hour, cfg.Tunables.OutputTTL)
	assert.Equal(t, metrics.Thresholds{Excellent: 2, Good: 0.5, Average: 0.2}, cfg.Tunables.Tiers)
	assert.Equal(t, "moi.db", cfg.Storage.DBPath)
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	assert.Error(t, err)
}

func TestEffectiveTunables(t *testing.T) {
	tun := DefaultTunables()
	tun.QualifySeconds = 10
	assert.Equal(t, 10.0, tun.Effective(true).QualifySeconds)
	assert.Equal(t, 60.0, tun.Effective(false).QualifySeconds)
	assert.Equal(t, 10.0, tun.Effective(true).AggregateOptions().QualifySeconds)
}

func TestLoadResolvesFileDotenvAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(DefaultFileName, []byte("server:\n  port: \"7000\"\nsink:\n  url: http://from-yaml\n"), 0o644))
	require.NoError(t, os.WriteFile(".env", []byte("SINK_SECRET=from-dotenv\n"), 0o644))

	t.Setenv(EnvConfigPath, "")
	t.Setenv("SINK_SECRET", "")
	os.Unsetenv("SINK_SECRET")
	t.Setenv("SINK_URL", "http://from-env")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "3")
	t.Setenv("MOI_DB_PATH", ":memory:")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "http://from-env", cfg.Sink.URL)
	assert.Equal(t, "from-dotenv", cfg.Sink.Secret)
	assert.Equal(t, 3*time.Second, cfg.Server.HTTPTimeout)
	assert.True(t, cfg.Storage.InMemory())
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv(EnvConfigPath, "")

	p, err := ResolvePath("")
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = ResolvePath(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)

	custom := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("{}"), 0o644))
	t.Setenv(EnvConfigPath, custom)
	p, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, custom, p)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "warn")
	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel())
}

func TestTunablesDetector(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tun := DefaultTunables()
	tun.DominantThreshold = 0.8
	tun.SampleRows = 3

	d := tun.Effective(true).Detector(log)
	assert.Equal(t, 0.8, d.DominantThreshold)
	assert.Equal(t, 3, d.SampleRows)

	d = tun.Effective(false).Detector(log)
	assert.Equal(t, 0.95, d.DominantThreshold)
	assert.Equal(t, 10, d.SampleRows)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, "llmd.yaml", `
addr: ":9090"
models:
  - name: tiny
    kind: sim
    path: /models/tiny.bin
  - name: hub
    kind: ollama
    remote_model: llama3
rate_limit:
  window_ms: 5000
  max_requests: 10
training:
  data_dir: /data/train
  checkpoint_dir: /data/ckpt
log:
  level: debug
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "tiny", cfg.Models[0].Name)
	assert.Equal(t, "sim", cfg.Models[0].Kind)
	assert.Equal(t, "llama3", cfg.Models[1].RemoteModel)
	assert.Equal(t, int64(5000), cfg.RateLimit.WindowMs)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "/data/train", cfg.Training.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.RateLimitWindow())
}

func TestLoadJSON(t *testing.T) {
	p := writeConfig(t, "llmd.json", `{
  "addr": ":7070",
  "max_body_bytes": 4096,
  "models": [{"name": "tiny", "path": "/models/tiny.bin"}],
  "rate_limit": {"window_ms": 1000, "max_requests": 3}
}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, int64(4096), cfg.MaxBodyBytes)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "/models/tiny.bin", cfg.Models[0].Path)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
}

func TestLoadTOML(t *testing.T) {
	p := writeConfig(t, "llmd.toml", `
addr = ":6060"

[[models]]
name = "tiny"
path = "/models/tiny.bin"

[rate_limit]
window_ms = 2000
max_requests = 5
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Addr)
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, int64(2000), cfg.RateLimit.WindowMs)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeConfig(t, "llmd.ini", "addr=:1")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config extension")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow())
	assert.Equal(t, 60, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "data/training", cfg.Training.DataDir)
	assert.Equal(t, "data/checkpoints", cfg.Training.CheckpointDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	var cfg Config
	cfg.Addr = ":1234"
	cfg.RateLimit.WindowMs = 100
	cfg.RateLimit.MaxRequests = 1
	cfg.Log.Level = "warn"
	cfg.ApplyDefaults()
	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, int64(100), cfg.RateLimit.WindowMs)
	assert.Equal(t, 1, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "warn", cfg.Log.Level)
}

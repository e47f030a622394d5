package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/pkg/encoding"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, log.LevelInfo, cfg.LogLevel())
	assert.Equal(t, encoding.JSON, cfg.SceneFormat())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
log:
  level: debug
scene:
  format: yaml
  strict_references: true
server:
  quic_addr: ""
  publish_interval: 250ms
`))
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel())
	assert.Equal(t, encoding.YAML, cfg.SceneFormat())
	assert.True(t, cfg.Scene.StrictReferences)
	assert.Empty(t, cfg.Server.QUICAddr)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.PublishInterval)
	assert.Equal(t, "prefabs", cfg.Prefabs.Dir)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"level":       "log: {level: chatty}",
		"format":      "scene: {format: toml}",
		"listeners":   "server: {http_addr: '', quic_addr: ''}",
		"cert pair":   "server: {cert_file: a.pem}",
		"unknown key": "server: {port: 80}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
	_, err := Parse(strings.NewReader("scene: {format: toml}"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmptyPrefabDirDisablesLibrary(t *testing.T) {
	cfg, err := Parse(strings.NewReader("prefabs: {dir: ''}"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Prefabs.Dir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefabs:\n  dir: /var/lib/prefabs\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/prefabs", cfg.Prefabs.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

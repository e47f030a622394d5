// Package config loads the YAML configuration of the snapshot server.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/pkg/encoding"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Scene   SceneConfig   `yaml:"scene"`
	Prefabs PrefabsConfig `yaml:"prefabs"`
	Server  ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SceneConfig struct {
	// Format is the snapshot encoding, "json" or "yaml".
	Format string `yaml:"format"`
	// StrictReferences rejects relationship fields pointing outside a loaded snapshot.
	StrictReferences bool `yaml:"strict_references"`
	// Load is an optional snapshot file loaded at startup.
	Load string `yaml:"load"`
}

type PrefabsConfig struct {
	// Dir is the prefab library directory. Empty runs without a library.
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// QUICAddr disables the QUIC listener when empty.
	QUICAddr string `yaml:"quic_addr"`
	// CertFile and KeyFile select the QUIC certificate. A self-signed one is generated
	// when both are empty.
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
}

func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info"},
		Scene:   SceneConfig{Format: "json"},
		Prefabs: PrefabsConfig{Dir: "prefabs"},
		Server: ServerConfig{
			HTTPAddr:        "127.0.0.1:8080",
			QUICAddr:        "127.0.0.1:8443",
			PublishInterval: time.Second,
			WriteTimeout:    5 * time.Second,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := encoding.Lookup(c.Scene.Format); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Server.HTTPAddr == "" && c.Server.QUICAddr == "" {
		return errors.Wrap(ErrInvalidConfig, "no listener address")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return errors.Wrap(ErrInvalidConfig, "cert_file and key_file go together")
	}
	if c.Server.PublishInterval < 0 || c.Server.WriteTimeout < 0 {
		return errors.Wrap(ErrInvalidConfig, "negative duration")
	}
	return nil
}

// LogLevel returns the parsed log level. Validate has already accepted it.
func (c Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// SceneFormat returns the parsed snapshot format. Validate has already accepted it.
func (c Config) SceneFormat() encoding.Format {
	format, err := encoding.Lookup(c.Scene.Format)
	if err != nil {
		return encoding.JSON
	}
	return format
}

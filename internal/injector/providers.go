// Package injector assembles the server process from its configuration.
package injector

import (
	"context"

	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/config"
	"github.com/zeusync/scenekit/internal/core/events/bus"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/prefab"
	"github.com/zeusync/scenekit/internal/core/scene"
	"github.com/zeusync/scenekit/internal/server"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	ProvideScene,
	ProvidePrefabs,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

// App is everything the server command runs.
type App struct {
	Config  config.Config
	Logger  *log.Logger
	Scene   *scene.Scene
	Prefabs *prefab.Library
	Server  *server.Server
}

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

// ProvideScene builds the served scene and loads the configured startup snapshot into it.
func ProvideScene(cfg config.Config, logger log.Log, b bus.EventBus) (*scene.Scene, error) {
	opts := []scene.Option{
		scene.WithFormat(cfg.SceneFormat()),
		scene.WithBus(b),
		scene.WithLogger(logger),
	}
	if cfg.Scene.StrictReferences {
		opts = append(opts, scene.WithStrictReferences())
	}
	sc := scene.New(opts...)

	if cfg.Scene.Load == "" {
		return sc, nil
	}
	created, err := sc.LoadEntitiesFromFile(cfg.Scene.Load)
	if err != nil {
		return nil, errors.Wrap(err, "startup scene")
	}
	logger.Info("startup scene loaded", log.String("path", cfg.Scene.Load), log.Int("entities", len(created)))
	return sc, nil
}

// ProvidePrefabs opens the prefab directory. It returns nil when no directory is configured.
func ProvidePrefabs(ctx context.Context, cfg config.Config, logger log.Log) (*prefab.Library, error) {
	if cfg.Prefabs.Dir == "" {
		return nil, nil
	}
	return prefab.Open(ctx, cfg.Prefabs.Dir, logger)
}

func ProvideServer(cfg config.Config, sc *scene.Scene, logger log.Log) *server.Server {
	return server.New(cfg.Server, sc, logger)
}

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/scenekit/internal/config"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/protocol/quic"
	"github.com/zeusync/scenekit/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := injector.InitializeApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting server:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	if err = run(ctx, app); err != nil {
		app.Logger.Error("server stopped", log.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app *injector.App) error {
	var tlsConfig *tls.Config
	if app.Config.Server.QUICAddr != "" {
		var err error
		if app.Config.Server.CertFile != "" {
			tlsConfig, err = quic.LoadTLS(app.Config.Server.CertFile, app.Config.Server.KeyFile)
		} else {
			app.Logger.Warn("no certificate configured, using a self-signed one")
			tlsConfig, err = quic.GenerateSelfSignedTLS()
		}
		if err != nil {
			return err
		}
	}

	err := app.Server.Run(ctx, tlsConfig)
	if app.Prefabs != nil {
		if flushErr := app.Prefabs.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			app.Logger.Error("prefab flush failed", log.Error(flushErr))
		}
	}
	return err
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/tee-secure-signer/cmd/flags"
	"github.com/ruteri/tee-secure-signer/config"
	"github.com/ruteri/tee-secure-signer/handlers"
	"github.com/ruteri/tee-secure-signer/httpserver"
	"github.com/ruteri/tee-secure-signer/identity"
	"github.com/ruteri/tee-secure-signer/keys"
	"github.com/ruteri/tee-secure-signer/metrics"
	"github.com/ruteri/tee-secure-signer/sharding"
	"github.com/ruteri/tee-secure-signer/storage"
	"github.com/ruteri/tee-secure-signer/trustclient"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "signer",
		Usage: "Serve the secure signer frame endpoint",
		Flags: append(append([]cli.Flag{}, flags.CommonFlags...), flags.ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := config.Load(cCtx.String(flags.ConfigFileFlag.Name))
			if err != nil {
				logger.Error("Failed to load configuration", "err", err)
				return err
			}
			flags.ApplyOverrides(cCtx, cfg)
			if err := cfg.Validate(); err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}

			store, err := storage.NewStoreFactory(logger).StoreFor(cfg.Storage.URI)
			if err != nil {
				logger.Error("Failed to open local store", "err", err)
				return err
			}
			logger.Info("Local store ready", "store", store.Name())

			m := metrics.New("signer")
			trust := trustclient.NewClient(cfg.Trust.BaseURL, cfg.Trust.Timeout, cfg.Trust.Backoff, logger, m)
			ids := identity.NewService(store, logger)
			shards := sharding.NewService(store, trust, ids, logger, m)
			handler := handlers.NewHandler(shards, ids, trust, keys.DefaultService(), handlers.PlaintextOTP{}, logger, m)

			server, err := httpserver.New(&httpserver.HTTPServerConfig{
				ListenAddr:               cfg.Server.ListenAddr,
				MetricsAddr:              cfg.Server.MetricsAddr,
				EnablePprof:              cfg.Server.EnablePprof,
				Log:                      logger,
				Channel:                  cfg.Messaging.ChannelOptions(),
				DrainDuration:            cfg.Server.DrainDuration,
				GracefulShutdownDuration: cfg.Server.GracefulShutdownDuration,
				ReadTimeout:              cfg.Server.ReadTimeout,
				WriteTimeout:             cfg.Server.WriteTimeout,
			}, handler, m)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting signer",
				"targetOrigin", cfg.Messaging.TargetOrigin,
				"trustURL", cfg.Trust.BaseURL)
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

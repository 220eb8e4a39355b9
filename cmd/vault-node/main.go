package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gabrielantonyxaviour/jedi-vault/api/datahandler"
	"github.com/gabrielantonyxaviour/jedi-vault/auth"
	"github.com/gabrielantonyxaviour/jedi-vault/cmd/flags"
	"github.com/gabrielantonyxaviour/jedi-vault/httpserver"
	"github.com/gabrielantonyxaviour/jedi-vault/storage"
)

var nodeFlags []cli.Flag = []cli.Flag{
	flags.ListenAddrFlag,
	flags.MetricsAddrFlag,
	&cli.StringFlag{
		Name:     "node-identity",
		Required: true,
		Usage:    "this node's public identity; access tokens must be audience-bound to it",
	},
	&cli.StringFlag{
		Name:     "org-pubkey-file",
		Required: true,
		Usage:    "PEM file with the organization's ES256 public key, used to verify access tokens",
	},
	&cli.StringFlag{
		Name:  "store",
		Value: "memory",
		Usage: "record store backend: 'memory' or 'file'",
	},
	&cli.StringFlag{
		Name:  "store-dir",
		Value: "",
		Usage: "base directory for the file store (required if store is 'file')",
	},
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:  "vault-node",
		Usage: "Serve one storage node of a secret-sharing vault cluster",
		Flags: nodeFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			orgKeyPEM, err := os.ReadFile(cCtx.String("org-pubkey-file"))
			if err != nil {
				logger.Error("Failed to read org public key", "err", err)
				return err
			}
			verifier, err := auth.NewVerifier(orgKeyPEM, cCtx.String("node-identity"))
			if err != nil {
				logger.Error("Failed to create token verifier", "err", err)
				return err
			}

			var store storage.NodeStore
			switch storeType := cCtx.String("store"); storeType {
			case "memory":
				store = storage.NewMemoryStore(logger)
			case "file":
				storeDir := cCtx.String("store-dir")
				if storeDir == "" {
					return fmt.Errorf("store-dir is required for the file store")
				}
				store, err = storage.NewFileStore(storeDir, logger)
				if err != nil {
					logger.Error("Failed to open file store", "err", err)
					return err
				}
			default:
				return fmt.Errorf("invalid store type: %s", storeType)
			}

			handler := datahandler.NewHandler(store, verifier, logger)
			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

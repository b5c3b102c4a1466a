package main

import (
	"fmt"
	"os"

	"smartpay/config"
	pgStorage "smartpay/internal/adapter/storage/postgres"
	"smartpay/pkg/logger"

	"github.com/alecthomas/kingpin/v2"
)

func main() {
	app := kingpin.New("smartpay", "Card-based prepaid wallet ledger.")
	configPath := app.Flag("config", "Path to the application config file").Short('c').String()

	serveCmd := app.Command("serve", "Run the HTTP API, websocket hub and device bus.").Default()
	migrateCmd := app.Command("migrate", "Manage the PostgreSQL schema.")
	migrateUpCmd := migrateCmd.Command("up", "Apply all pending migrations.")
	migrateDownCmd := migrateCmd.Command("down", "Roll back migrations.")
	downSteps := migrateDownCmd.Arg("steps", "Number of migrations to roll back").Default("1").Int()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	switch command {
	case serveCmd.FullCommand():
		err = serve(cfg, log)
	case migrateUpCmd.FullCommand(), migrateDownCmd.FullCommand():
		if cfg.Storage.Driver != "postgres" {
			log.Fatal().Str("driver", cfg.Storage.Driver).Msg("migrations need the postgres storage driver")
		}
		var mg *pgStorage.Migrator
		mg, err = pgStorage.NewMigrator(cfg.Database.MigrateURL(), log)
		if err != nil {
			break
		}
		if command == migrateUpCmd.FullCommand() {
			err = mg.Up()
		} else {
			err = mg.Down(*downSteps)
		}
		if closeErr := mg.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("closing migrator")
		}
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

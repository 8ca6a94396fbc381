package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scenekit/builder-backend/internal/config"
	"github.com/scenekit/builder-backend/internal/migration"
	"github.com/scenekit/builder-backend/pkg/database"
	"github.com/scenekit/builder-backend/pkg/logger"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

var errDuplicatePending = errors.New("duplicate pending curations found")

func main() {
	config.LoadDotEnv()

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "configs/config.local.yaml",
		Usage:   "config file path",
		EnvVars: []string{"CONFIG_PATH"},
	}
	verboseFlag := &cli.BoolFlag{Name: "verbose", Usage: "log SQL statements"}

	app := &cli.App{
		Name:  "builder-migrate",
		Usage: "schema migrations of the builder backend",
		Flags: []cli.Flag{configFlag, verboseFlag},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "create or update tables and the pending-review indexes",
				Action: func(c *cli.Context) error {
					db, err := open(c)
					if err != nil {
						return err
					}
					if err := migration.Run(db); err != nil {
						return err
					}
					logger.GetLogger().Info().Msg("migration complete")
					return nil
				},
			},
			{
				Name:  "verify",
				Usage: "report entities with more than one pending curation",
				Action: func(c *cli.Context) error {
					db, err := open(c)
					if err != nil {
						return err
					}
					dups, err := migration.Verify(db)
					if err != nil {
						return err
					}
					for _, d := range dups {
						logger.GetLogger().Warn().
							Str("table", d.Table).
							Str("foreign_id", d.ForeignID).
							Int64("count", d.Count).
							Msg("duplicate pending curation")
					}
					if len(dups) > 0 {
						return fmt.Errorf("%w: %d", errDuplicatePending, len(dups))
					}
					logger.GetLogger().Info().Msg("no duplicate pending curations")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

func open(c *cli.Context) (*gorm.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.InitStructured(cfg.App.Env, cfg.App.LogLevel)

	return database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.GetDSN(),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
		LogSQL:          cfg.Database.LogSQL || c.Bool("verbose"),
	})
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/scenekit/builder-backend/internal/config"
	"github.com/urfave/cli/v2"
)

// @title           Builder Curation API
// @version         1.0
// @description     Review workflow for builder collections and items
//
// @host            localhost:5000
// @BasePath        /v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT whose subject is the caller address. Example: "Bearer {token}"

// defaultConfigPath returns configs/config.<APP_ENV>.yaml
func defaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	app := &cli.App{
		Name:  "builder-api",
		Usage: "curation API of the builder backend",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the http server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Value:   defaultConfigPath(),
						Usage:   "config file path",
						EnvVars: []string{"CONFIG_PATH"},
					},
				},
				Action: func(c *cli.Context) error {
					return serve(c.Context, c.String("config"), dotenvFiles)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("builder-api failed")
	}
}

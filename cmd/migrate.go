package cmd

import (
	"raffle/config"
	"raffle/database"

	"github.com/urfave/cli/v2"
)

// MigrateCommand applies, rolls back or reports schema migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:     "migrate",
		Usage:    "Manage database migrations",
		Category: "Database",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					return database.MigrateUp(config.Get().GetDatabaseURL())
				},
			},
			{
				Name:      "down",
				Usage:     "Roll back migrations",
				ArgsUsage: "[steps]",
				Action: func(c *cli.Context) error {
					steps := "1"
					if c.NArg() > 0 {
						steps = c.Args().First()
					}
					return database.MigrateDown(config.Get().GetDatabaseURL(), steps)
				},
			},
			{
				Name:  "status",
				Usage: "Show the current migration version",
				Action: func(c *cli.Context) error {
					return database.MigrateStatus(config.Get().GetDatabaseURL())
				},
			},
		},
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"raffle/cmd"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	app := cli.NewApp()
	app.Name = "raffle"
	app.Usage = "Raffle ticket allocation and order settlement"
	app.Action = cli.ShowAppHelp
	app.Commands = []*cli.Command{
		{
			Name:        "run",
			Usage:       "Start the settlement service",
			Category:    "Service",
			Description: `Consumes payment webhooks, sweeps stale orders and draws due giveaways.`,
			Action: func(c *cli.Context) error {
				return cmd.Run(c.Context)
			},
		},
		cmd.MigrateCommand(),
		cmd.AdminCommand(),
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal("Application error: ", err)
	}
}

package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/panvault/cmd/app/commands"
	"github.com/allisson/panvault/internal/app"
	"github.com/allisson/panvault/internal/config"
)

func getRetentionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "sweep-retention",
			Usage: "Delete expired encrypted PANs and orphaned data keys",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Report how many records would be deleted without deleting",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sweeper, err := container.Sweeper()
				if err != nil {
					return err
				}

				return commands.RunSweepRetention(
					ctx,
					sweeper,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			},
		},
	}
}

package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/panvault/cmd/app/commands"
	"github.com/allisson/panvault/internal/app"
	"github.com/allisson/panvault/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-dek",
			Usage: "Pre-generate unlocked data keys for future rotations",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "count",
					Aliases: []string{"c"},
					Value:   1,
					Usage:   "Number of data keys to generate",
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

				dekRepo, err := container.DekRepository()
				if err != nil {
					return err
				}

				masterKey, err := container.MasterKey()
				if err != nil {
					return err
				}

				return commands.RunCreateDek(
					ctx,
					dekRepo,
					masterKey,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("count")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "hash-pan",
			Usage: "Compute the keyed hash (HPAN) of a card number",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "pan",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Card number (13-19 digits)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				hasher, err := container.PanHasher()
				if err != nil {
					return err
				}

				return commands.RunHashPan(
					hasher,
					commands.DefaultIO().Writer,
					cmd.String("pan"),
				)
			},
		},
	}
}

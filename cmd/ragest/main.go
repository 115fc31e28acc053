package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/ragest/cmd/ragest/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "ragest",
		Usage: "ingest documents into a deduplicated vector index and query it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML config file",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "load, chunk, dedup and embed documents",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "maximum chunk length in characters (overrides config)",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "characters shared by consecutive chunks (overrides config)",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:      "query",
				Usage:     "print the passages closest to a question",
				ArgsUsage: "QUESTION",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "number of passages (defaults to retrieval_k)",
					},
					&cli.BoolFlag{
						Name:  "speak",
						Usage: "read the top passage aloud",
					},
				},
				Action: commands.QueryAction,
			},
			{
				Name:   "stats",
				Usage:  "print the number of records in the index",
				Action: commands.StatsAction,
			},
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: commands.ServeAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ragest:", err)
		os.Exit(1)
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func StatsAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	n, err := appCtx.Service.Count(ctx)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	opts := appCtx.Config.IndexOptions()
	fmt.Fprintf(cmd.Root().Writer, "Number of documents in database: %d (backend=%s collection=%s)\n",
		n, backendName(opts.Backend), opts.Collection)
	return nil
}

func backendName(b string) string {
	if b == "" {
		return "local"
	}
	return b
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/ragest/internal/index"
	"github.com/dgallion1/ragest/internal/speech"
)

// QueryAction prints the passages nearest to QUESTION.
func QueryAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("query: QUESTION is required", 2)
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	k := appCtx.Config.RetrievalK
	if cmd.IsSet("k") {
		k = cmd.Int("k")
	}
	if k < 1 {
		return cli.Exit("query: --k must be positive", 2)
	}

	recs, err := appCtx.Service.Retrieve(ctx, question, k)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	printPassages(cmd.Root().Writer, recs)

	if cmd.Bool("speak") && len(recs) > 0 {
		speaker := &speech.CommandSpeaker{Command: appCtx.Config.SpeechCommand, Args: appCtx.Config.SpeechArgs}
		if err := speaker.Speak(ctx, recs[0].Content); err != nil {
			appCtx.Logger.Warn("speech failed", "error", err)
		}
	}
	return nil
}

func printPassages(w io.Writer, recs []index.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no passages found")
		return
	}
	for i, rec := range recs {
		fmt.Fprintf(w, "[%d] score=%.3f source=%s page=%d\n", i+1, rec.Score, rec.Metadata.Source, rec.Metadata.Page)
		fmt.Fprintf(w, "%s\n\n", rec.Content)
	}
}

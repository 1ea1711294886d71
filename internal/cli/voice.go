package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/mmynk/ledgersync/internal/voice"
)

type voiceCmd struct {
	app *App
	yes bool
}

func (*voiceCmd) Name() string { return "voice" }
func (*voiceCmd) Synopsis() string {
	return "record debts from recognised speech, one utterance per line"
}
func (*voiceCmd) Usage() string {
	return `ledger voice [-yes]

  Reads recognised utterances such as "Ali debt fifty" or "علي دين خمسين"
  from standard input, one per line. Each parsed command is shown and must
  be confirmed with y before it is recorded.
`
}

func (c *voiceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm every parsed command without asking.")
}

func (c *voiceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	parser := voice.New(
		voice.WithClock(c.app.now),
		voice.WithDuplicateWindow(c.app.Config.DuplicateWindow),
		voice.WithLogger(c.app.logger()),
		voice.WithMetrics(c.app.instruments()),
	)

	status := subcommands.ExitSuccess
	for {
		if err := parser.Listen(); err != nil {
			return c.app.fail(err)
		}
		text, ok := c.app.readLine()
		if !ok {
			return status
		}

		cmd, err := parser.HandleUtterance(text)
		var pe *voice.ParseError
		switch {
		case errors.As(err, &pe):
			fmt.Fprintf(c.app.Out, "not understood: %s\n", pe.Reason)
			continue
		case err != nil:
			return c.app.fail(err)
		case cmd == nil:
			continue
		}

		fmt.Fprintf(c.app.Out, "%s owes %s (%s %s)", cmd.Name, cmd.Amount, cmd.Date, cmd.TimeOfDay)
		if !c.yes {
			fmt.Fprint(c.app.Out, " confirm? [y/N] ")
			answer, _ := c.app.readLine()
			if a := strings.ToLower(answer); a != "y" && a != "yes" {
				if err := parser.Reject(); err != nil {
					return c.app.fail(err)
				}
				fmt.Fprintln(c.app.Out, "discarded")
				continue
			}
		} else {
			fmt.Fprintln(c.app.Out)
		}

		rec, err := parser.Confirm(ctx, w.session)
		if err != nil {
			fmt.Fprintf(c.app.Out, "error: %v\n", err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(c.app.Out, "recorded, %s now owes %s for %s %s\n", rec.DebtorName, rec.RemainingAmount, rec.Date, rec.TimeOfDay)
	}
}

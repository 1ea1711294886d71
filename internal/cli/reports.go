package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/mmynk/ledgersync/internal/models"
)

type listCmd struct {
	app         *App
	debtor      string
	consumption bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list debt records or the consumption log" }
func (*listCmd) Usage() string {
	return `ledger list [-debtor <name>] [-consumption]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.debtor, "debtor", "", "Only list the records of this debtor.")
	f.BoolVar(&c.consumption, "consumption", false, "List the consumption log instead of debts.")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	tw := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if c.consumption {
		fmt.Fprintln(tw, "DATE\tTYPE\tCOUNT")
		for _, rec := range w.session.ListConsumption() {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", rec.Date, rec.Category, rec.Count)
		}
		return subcommands.ExitSuccess
	}

	var debts []models.DebtRecord
	if c.debtor != "" {
		debts = w.session.DebtsFor(c.debtor)
	} else {
		debts = w.session.ListDebts()
	}
	fmt.Fprintln(tw, "DEBTOR\tDATE\tTIME\tTOTAL\tPAID\tREMAINING\tPAYMENTS")
	for _, d := range debts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			d.DebtorName, d.Date, d.TimeOfDay, d.TotalAmount, d.PaidAmount, d.RemainingAmount, len(d.Payments))
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	app *App
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show balances per debtor and ledger totals" }
func (*summaryCmd) Usage() string {
	return `ledger summary
`
}

func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	s := w.session.Summary()
	tw := tabwriter.NewWriter(c.app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEBTOR\tTOTAL\tPAID\tREMAINING\tOPEN")
	for _, d := range s.Debtors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", d.DebtorName, d.Total, d.Paid, d.Remaining, d.OpenCount)
	}
	fmt.Fprintf(tw, "all\t%s\t%s\t%s\t\n", s.TotalDebt, s.TotalPaid, s.TotalRemaining)
	tw.Flush()

	if s.ConsumptionTotal > 0 {
		days := make([]string, 0, len(s.ConsumptionByDay))
		for day := range s.ConsumptionByDay {
			days = append(days, day)
		}
		sort.Strings(days)
		fmt.Fprintf(c.app.Out, "\nconsumption: %d\n", s.ConsumptionTotal)
		for _, day := range days {
			fmt.Fprintf(c.app.Out, "  %s  %d\n", day, s.ConsumptionByDay[day])
		}
	}
	return subcommands.ExitSuccess
}

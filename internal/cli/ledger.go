package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/models"
)

// dateFlags are shared by commands that take a calendar day.
type dateFlags struct {
	date string
}

func (d *dateFlags) set(f *flag.FlagSet) {
	f.StringVar(&d.date, "d", "", "Date as YYYY-MM-DD (defaults to today).")
}

func (d *dateFlags) resolve(a *App) string {
	if d.date != "" {
		return d.date
	}
	return a.now().Format(models.DateLayout)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

type debtCmd struct {
	app *App
	dateFlags
	timeOfDay string
}

func (*debtCmd) Name() string     { return "debt" }
func (*debtCmd) Synopsis() string { return "record a debt, adding to the same day and time of day" }
func (*debtCmd) Usage() string {
	return `ledger debt [-d <date>] [-t morning|evening] <debtor> <amount>

  Adds amount to the debt of debtor for the given day and time of day,
  creating the record on first entry.
`
}

func (c *debtCmd) SetFlags(f *flag.FlagSet) {
	c.dateFlags.set(f)
	f.StringVar(&c.timeOfDay, "t", "", "Time of day, morning or evening (defaults to the current half of the day).")
}

func (c *debtCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(1))
	if err != nil {
		return c.app.fail(err)
	}
	tod := models.TimeOfDay(c.timeOfDay)
	if c.timeOfDay == "" {
		tod = models.TimeOfDayAt(c.app.now())
	}

	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	rec, err := w.session.CreateOrIncrementDebt(ctx, f.Arg(0), amount, c.resolve(c.app), tod)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "%s owes %s for %s %s (remaining %s)\n",
		rec.DebtorName, rec.TotalAmount, rec.Date, rec.TimeOfDay, rec.RemainingAmount)
	return subcommands.ExitSuccess
}

type payCmd struct {
	app *App
	dateFlags
}

func (*payCmd) Name() string     { return "pay" }
func (*payCmd) Synopsis() string { return "apply a payment to the oldest open debts of a debtor" }
func (*payCmd) Usage() string {
	return `ledger pay [-d <date>] <debtor> <amount>

  Distributes amount over the open debts of debtor, oldest first. Any
  amount above the outstanding balance is reported and not recorded.
`
}

func (c *payCmd) SetFlags(f *flag.FlagSet) { c.dateFlags.set(f) }

func (c *payCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	amount, err := parseAmount(f.Arg(1))
	if err != nil {
		return c.app.fail(err)
	}

	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	alloc, err := w.session.ApplyPayment(ctx, f.Arg(0), amount, c.resolve(c.app))
	if err != nil {
		return c.app.fail(err)
	}
	for _, line := range alloc.Lines {
		fmt.Fprintf(c.app.Out, "%s: paid %s, remaining %s\n", line.Date, line.Amount, line.RemainingAfter)
	}
	if alloc.Overpay.IsPositive() {
		fmt.Fprintf(c.app.Out, "overpaid by %s, not recorded\n", alloc.Overpay)
	}
	return subcommands.ExitSuccess
}

type consumeCmd struct {
	app *App
	dateFlags
}

func (*consumeCmd) Name() string     { return "consume" }
func (*consumeCmd) Synopsis() string { return "add an entry to the consumption log" }
func (*consumeCmd) Usage() string {
	return `ledger consume [-d <date>] <category> <count>
`
}

func (c *consumeCmd) SetFlags(f *flag.FlagSet) { c.dateFlags.set(f) }

func (c *consumeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	count, err := strconv.Atoi(f.Arg(1))
	if err != nil {
		return c.app.fail(fmt.Errorf("invalid count %q", f.Arg(1)))
	}

	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	rec, err := w.session.AddConsumption(ctx, f.Arg(0), count, c.resolve(c.app))
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "logged %d %s on %s\n", rec.Count, rec.Category, rec.Date)
	return subcommands.ExitSuccess
}

type resetCmd struct {
	app *App
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "back up and clear every debt and consumption record" }
func (*resetCmd) Usage() string {
	return `ledger reset -yes

  Writes a backup of the ledger, then clears it. Use restore to undo.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm the reset.")
}

func (c *resetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(c.app.Out, "refusing to clear the ledger without -yes")
		return subcommands.ExitUsageError
	}

	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	backup, err := w.session.DeleteAll(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "cleared %d debts and %d consumption records, backup taken at %s\n",
		len(backup.Debts), len(backup.Consumption), backup.Timestamp.Format("2006-01-02 15:04"))
	return subcommands.ExitSuccess
}

type restoreCmd struct {
	app *App
}

func (*restoreCmd) Name() string     { return "restore" }
func (*restoreCmd) Synopsis() string { return "restore the backup taken by the last reset" }
func (*restoreCmd) Usage() string {
	return `ledger restore
`
}

func (*restoreCmd) SetFlags(*flag.FlagSet) {}

func (c *restoreCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := c.app.open(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	defer w.close()

	backup, err := w.session.RestoreBackup(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "restored %d debts and %d consumption records\n", len(backup.Debts), len(backup.Consumption))
	return subcommands.ExitSuccess
}

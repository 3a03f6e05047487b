package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/bwmarrin/snowflake"

	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/money"
	"github.com/robinvdvleuten/contribute/order"
	"github.com/robinvdvleuten/contribute/output"
	"github.com/robinvdvleuten/contribute/params"
)

// parseID reads a contribution id given on the command line.
func parseID(key, value string) (snowflake.ID, error) {
	id, err := params.Bag{key: value}.ID(key)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, &contribution.MissingFieldError{Field: key}
	}
	return id, nil
}

type StatusCmd struct {
	Limit int `help:"Number of contributions to list." short:"n" default:"20"`
}

func (cmd *StatusCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "status")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rows, err := a.store.Contributions(runCtx, cmd.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		printInfof(ctx.Stdout, "No contributions")
		return nil
	}

	styles := output.NewStyles(ctx.Stdout)
	table := make([][]cell, 0, len(rows))
	for _, c := range rows {
		received := ""
		if c.ReceiveDate != nil {
			received = c.ReceiveDate.Format("2006-01-02")
		}
		total := money.Format(c.TotalAmount, c.Currency)
		table = append(table, []cell{
			{text: c.ID.String(), styled: styles.ID(c.ID.String())},
			plain(c.ContactID.String()),
			{text: c.Status.String(), styled: styles.Status(c.Status)},
			{text: total, styled: styles.Money(c.TotalAmount, c.Currency)},
			plain(received),
			plain(c.Source),
		})
	}

	printTable(ctx.Stdout, []column{
		{title: "ID"},
		{title: "Contact"},
		{title: "Status"},
		{title: "Total", right: true},
		{title: "Received"},
		{title: "Source"},
	}, table)
	return nil
}

type CompleteCmd struct {
	ID        string `help:"Contribution id." arg:""`
	TrxnID    string `help:"Processor transaction id." name:"trxn-id"`
	Fee       string `help:"Processor fee."`
	Date      string `help:"Transaction date (YYYY-MM-DD or RFC 3339)."`
	NoReceipt bool   `help:"Do not send a receipt." name:"no-receipt"`
}

func (cmd *CompleteCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "complete")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	bag := params.Bag{
		"id":               cmd.ID,
		"trxn_id":          cmd.TrxnID,
		"fee_amount":       cmd.Fee,
		"trxn_date":        cmd.Date,
		"is_email_receipt": !cmd.NoReceipt,
	}
	in, err := order.InputFromParams(bag, a.settings)
	if err != nil {
		return err
	}
	if in.ContributionID == 0 {
		return &contribution.MissingFieldError{Field: "id"}
	}

	res, err := a.orders.CompleteOrder(runCtx, in)
	if err != nil {
		return err
	}

	c := res.Contribution
	styles := output.NewStyles(ctx.Stdout)
	printSuccess(ctx.Stdout, fmt.Sprintf("Contribution %s %s (%s)",
		styles.ID(c.ID.String()), styles.Status(c.Status), styles.Money(c.TotalAmount, c.Currency)))
	if res.Components != nil {
		for _, msg := range res.Components.Messages {
			printInfof(ctx.Stdout, "%s", msg)
		}
	}
	if res.Receipt != nil {
		printInfof(ctx.Stdout, "Receipt sent: %s", res.Receipt.Subject())
	}
	return nil
}

type PayCmd struct {
	ID         string `help:"Contribution id." arg:""`
	Amount     string `help:"Amount paid, negative for a refund." arg:""`
	TrxnID     string `help:"Processor transaction id." name:"trxn-id"`
	Fee        string `help:"Processor fee."`
	Date       string `help:"Transaction date (YYYY-MM-DD or RFC 3339)."`
	Instrument string `help:"Payment instrument name, e.g. Check."`
	Check      string `help:"Check number."`
}

func (cmd *PayCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "pay")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	bag := params.Bag{
		"contribution_id": cmd.ID,
		"total_amount":    cmd.Amount,
		"trxn_id":         cmd.TrxnID,
		"fee_amount":      cmd.Fee,
		"trxn_date":       cmd.Date,
		"check_number":    cmd.Check,
	}
	if cmd.Instrument != "" {
		pi, err := a.store.PaymentInstrumentByName(runCtx, cmd.Instrument)
		if err != nil {
			return err
		}
		bag["payment_instrument_id"] = pi.ID
	}

	p, err := contribution.PaymentRequestFromParams(bag, a.settings)
	if err != nil {
		return err
	}
	res, err := a.engine.RecordPayment(runCtx, p)
	if err != nil {
		return err
	}

	c := res.Contribution
	styles := output.NewStyles(ctx.Stdout)
	kind := "Payment"
	if p.TotalAmount.IsNegative() {
		kind = "Refund"
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("%s of %s recorded as %s",
		kind, styles.Money(p.TotalAmount, c.Currency), styles.ID(res.Trxn.ID.String())))
	printInfof(ctx.Stdout, "Status %s, balance %s", styles.Status(c.Status), styles.Money(res.Balance, c.Currency))
	return nil
}

type FailCmd struct {
	ID     string `help:"Contribution id." arg:""`
	Reason string `help:"Failure message, defaults to the failed payment activity subject."`
}

func (cmd *FailCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "fail")
	defer report()

	id, err := parseID("id", cmd.ID)
	if err != nil {
		return err
	}

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	reason := cmd.Reason
	if reason == "" {
		reason = contribution.FailedPaymentSubject
	}
	res, err := a.engine.FailPayment(runCtx, id, reason)
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	printSuccess(ctx.Stdout, fmt.Sprintf("Contribution %s %s", styles.ID(id.String()), styles.Status(res.Contribution.Status)))
	return nil
}

type BalanceCmd struct {
	ID string `help:"Contribution id." arg:""`
}

func (cmd *BalanceCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "balance")
	defer report()

	id, err := parseID("id", cmd.ID)
	if err != nil {
		return err
	}

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	info, err := a.engine.PaymentInfo(runCtx, id)
	if err != nil {
		return err
	}
	totals, err := a.recorder.AccountTotals(runCtx, id)
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	table := make([][]cell, 0, len(totals))
	for _, total := range totals {
		account, err := a.resolver.Account(runCtx, total.AccountID)
		if err != nil {
			return err
		}
		amount := money.Format(total.Amount, info.Currency)
		table = append(table, []cell{
			{text: account.Name, styled: styles.Account(account.Name)},
			plain(string(account.AccountType)),
			{text: amount, styled: styles.Money(total.Amount, info.Currency)},
		})
	}
	printTable(ctx.Stdout, []column{
		{title: "Account"},
		{title: "Type"},
		{title: "Amount", right: true},
	}, table)

	_, _ = fmt.Fprintln(ctx.Stdout)
	_, _ = fmt.Fprintf(ctx.Stdout, "%s %s\n", styles.Keyword("Total:  "), styles.Money(info.Total, info.Currency))
	_, _ = fmt.Fprintf(ctx.Stdout, "%s %s (%d payment(s))\n", styles.Keyword("Paid:   "), styles.Money(info.Paid, info.Currency), len(info.Payments))
	_, _ = fmt.Fprintf(ctx.Stdout, "%s %s\n", styles.Keyword("Balance:"), styles.Money(info.Balance, info.Currency))
	return nil
}

type DeleteCmd struct {
	ID  string `help:"Contribution id." arg:""`
	Yes bool   `help:"Delete without asking." short:"y"`
}

func (cmd *DeleteCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "delete")
	defer report()

	id, err := parseID("id", cmd.ID)
	if err != nil {
		return err
	}

	if !cmd.Yes {
		confirmed, err := promptYesNo(ctx, fmt.Sprintf("Delete contribution %s with its ledger rows?", id))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			printInfof(ctx.Stdout, "Nothing deleted")
			return nil
		}
	}

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.engine.Delete(runCtx, id); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, fmt.Sprintf("Deleted contribution %s", id))
	return nil
}

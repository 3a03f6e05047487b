package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
	"github.com/bwmarrin/snowflake"
	"github.com/charmbracelet/glamour"

	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/receipt"
)

type ReceiptCmd struct {
	ID   string `help:"Contribution id." arg:""`
	Send bool   `help:"Send the receipt and stamp the receipt date."`
	Raw  bool   `help:"Print the markdown source instead of rendering it."`
}

func (cmd *ReceiptCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "receipt")
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

	var rcpt *receipt.Receipt
	if cmd.Send {
		rcpt, err = a.orders.SendConfirmation(runCtx, id)
	} else {
		settings := config.FromContext(runCtx)
		rcpt, err = receipt.Build(runCtx, a.store, a.recorder, id, receipt.Options{
			From:    settings.Receipt.From,
			TaxTerm: settings.TaxTerm,
		})
	}
	if err != nil {
		return err
	}

	if err := renderMarkdown(ctx, rcpt.Markdown(), cmd.Raw); err != nil {
		return err
	}
	if cmd.Send {
		printSuccess(ctx.Stdout, fmt.Sprintf("Sent %q", rcpt.Subject()))
	}
	return nil
}

// renderMarkdown prints md styled for the terminal, or as is when raw is set
// or stdout is not a terminal.
func renderMarkdown(ctx *kong.Context, md string, raw bool) error {
	if raw || !isTerminal() {
		_, err := fmt.Fprint(ctx.Stdout, md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth(80)),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}
	_, err = fmt.Fprint(ctx.Stdout, out)
	return err
}

// Inspection is everything stored for one contribution.
type Inspection struct {
	Contribution   *model.Contribution
	LineItems      []model.LineItem
	Transactions   []model.FinancialTrxn
	FinancialItems []model.FinancialItem
	Activities     []model.Activity
}

type InspectCmd struct {
	ID string `help:"Contribution id." arg:""`
}

func (cmd *InspectCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "inspect")
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

	in, err := inspect(runCtx, a, id)
	if err != nil {
		return err
	}

	repr.New(ctx.Stdout, repr.Indent("  "), repr.OmitEmpty(true)).Println(in)
	return nil
}

func inspect(ctx context.Context, a *app, id snowflake.ID) (*Inspection, error) {
	var in Inspection
	var err error
	if in.Contribution, err = a.store.GetContribution(ctx, id); err != nil {
		return nil, err
	}
	if in.LineItems, err = a.store.LineItems(ctx, id); err != nil {
		return nil, err
	}
	if in.Transactions, err = a.store.ContributionTrxns(ctx, id); err != nil {
		return nil, err
	}
	if in.FinancialItems, err = a.store.ContributionFinancialItems(ctx, id); err != nil {
		return nil, err
	}
	if in.Activities, err = a.store.Activities(ctx, id); err != nil {
		return nil, err
	}
	return &in, nil
}

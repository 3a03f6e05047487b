// Contribution Generator
//
// This tool fills a database with contributions for performance testing and
// profiling. It drives the engine through realistic lifecycles (completed
// donations, pay later pledges paid in parts, refunds, cancellations and
// failed payments) so every ledger path is exercised.
//
// Usage:
//
//	go run main.go load.db
//	go run main.go load.db 50000  # Specify the number of contributions
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/config"
	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/ledger"
	"github.com/robinvdvleuten/contribute/model"
	"github.com/robinvdvleuten/contribute/output"
	"github.com/robinvdvleuten/contribute/store"
	"github.com/robinvdvleuten/contribute/telemetry"
)

const (
	defaultCount = 10000
)

var (
	financialTypes = []string{"Donation", "Donation", "Donation", "Member Dues", "Event Fee"}
	instruments    = []string{"Credit Card", "Check", "Cash", "EFT"}
	sources        = []string{
		"Online donation", "Spring appeal", "Annual gala", "Year end campaign",
		"Board giving", "Walk-in", "Matching gift", "Membership drive",
	}
)

type generator struct {
	engine      *contribution.Engine
	types       []snowflake.ID
	instruments []snowflake.ID
	date        time.Time
	seq         int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: generate_contributions <database> [count]")
		os.Exit(2)
	}
	count := defaultCount
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil {
			count = n
		}
	}

	if err := run(os.Args[1], count); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string, count int) error {
	collector := telemetry.NewTimingCollector()
	ctx := telemetry.WithCollector(context.Background(), collector)
	settings := config.Default()
	ctx = settings.WithContext(ctx)

	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if _, err := accounts.Seed(ctx, s, settings.Chart); err != nil {
		return err
	}

	resolver := accounts.NewResolver(s, accounts.WithTTL(settings.AccountCacheTTL))
	g := &generator{
		engine: contribution.New(s, resolver, ledger.New(s, resolver)),
		date:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, name := range financialTypes {
		ft, err := s.FinancialTypeByName(ctx, name)
		if err != nil {
			return err
		}
		g.types = append(g.types, ft.ID)
	}
	for _, name := range instruments {
		pi, err := s.PaymentInstrumentByName(ctx, name)
		if err != nil {
			return err
		}
		g.instruments = append(g.instruments, pi.ID)
	}

	timer := collector.Start(fmt.Sprintf("generate %d contributions", count))
	counts := map[string]int{}
	for i := 0; i < count; i++ {
		// Mix different lifecycles
		var kind string
		switch rand.Intn(10) {
		case 0, 1, 2, 3: // 40% - Completed donation
			kind, err = "completed", g.completed(ctx)
		case 4, 5: // 20% - Pay later, paid in parts
			kind, err = "partial", g.partial(ctx)
		case 6: // 10% - Pay later, paid in full
			kind, err = "paid later", g.paidLater(ctx)
		case 7: // 10% - Refunded
			kind, err = "refunded", g.refunded(ctx)
		case 8: // 10% - Cancelled
			kind, err = "cancelled", g.cancelled(ctx)
		case 9: // 10% - Failed payment
			kind, err = "failed", g.failed(ctx)
		}
		if err != nil {
			return fmt.Errorf("contribution %d (%s): %w", i, kind, err)
		}
		counts[kind]++

		// Advance date by 0-2 days
		g.date = g.date.AddDate(0, 0, rand.Intn(3))
	}
	timer.End()

	fmt.Fprintf(os.Stderr, "\nGenerated %d contributions in %s\n", count, path)
	for kind, n := range counts {
		fmt.Fprintf(os.Stderr, "  %-10s %d\n", kind, n)
	}
	collector.Report(os.Stderr, output.NewStyles(os.Stderr))
	return nil
}

func (g *generator) request(status model.ContributionStatus, payLater bool) *contribution.Request {
	g.seq++
	date := g.date
	return &contribution.Request{
		ContactID:           snowflake.ID(rand.Intn(5000) + 1),
		FinancialTypeID:     g.types[rand.Intn(len(g.types))],
		PaymentInstrumentID: g.instruments[rand.Intn(len(g.instruments))],
		TotalAmount:         decimal.NewNullDecimal(randAmount(5, 1000)),
		Status:              status,
		IsPayLater:          &payLater,
		ReceiveDate:         &date,
		TrxnID:              fmt.Sprintf("gen_%d_%d", date.Unix(), g.seq),
		Source:              sources[rand.Intn(len(sources))],
	}
}

func (g *generator) completed(ctx context.Context) error {
	req := g.request(model.StatusCompleted, false)
	if rand.Intn(2) == 0 {
		fee := req.TotalAmount.Decimal.Mul(decimal.RequireFromString("0.029")).Add(decimal.RequireFromString("0.30")).Round(2)
		req.FeeAmount = decimal.NewNullDecimal(fee)
	}
	_, err := g.engine.Save(ctx, req)
	return err
}

func (g *generator) partial(ctx context.Context) error {
	res, err := g.engine.Save(ctx, g.request(model.StatusPending, true))
	if err != nil {
		return err
	}
	c := res.Contribution

	// One to three payments, never settling the balance.
	remaining := c.TotalAmount
	for n := rand.Intn(3) + 1; n > 0; n-- {
		amount := remaining.Mul(decimal.NewFromFloat(0.2 + rand.Float64()*0.3)).Round(2)
		if !amount.IsPositive() || amount.GreaterThanOrEqual(remaining) {
			break
		}
		if _, err := g.engine.RecordPayment(ctx, contribution.PaymentRequest{
			ContributionID: c.ID,
			TotalAmount:    amount,
		}); err != nil {
			return err
		}
		remaining = remaining.Sub(amount)
	}
	return nil
}

func (g *generator) paidLater(ctx context.Context) error {
	res, err := g.engine.Save(ctx, g.request(model.StatusPending, true))
	if err != nil {
		return err
	}
	_, err = g.engine.RecordPayment(ctx, contribution.PaymentRequest{
		ContributionID: res.Contribution.ID,
		TotalAmount:    res.Contribution.TotalAmount,
	})
	return err
}

func (g *generator) refunded(ctx context.Context) error {
	res, err := g.engine.Save(ctx, g.request(model.StatusCompleted, false))
	if err != nil {
		return err
	}
	_, err = g.engine.Save(ctx, &contribution.Request{ID: res.Contribution.ID, Status: model.StatusRefunded})
	return err
}

func (g *generator) cancelled(ctx context.Context) error {
	res, err := g.engine.Save(ctx, g.request(model.StatusPending, true))
	if err != nil {
		return err
	}
	_, err = g.engine.Save(ctx, &contribution.Request{
		ID:           res.Contribution.ID,
		Status:       model.StatusCancelled,
		CancelReason: "Donor request",
	})
	return err
}

func (g *generator) failed(ctx context.Context) error {
	res, err := g.engine.Save(ctx, g.request(model.StatusPending, false))
	if err != nil {
		return err
	}
	_, err = g.engine.FailPayment(ctx, res.Contribution.ID, contribution.FailedPaymentSubject)
	return err
}

func randAmount(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + rand.Float64()*(max-min)).Round(2)
}

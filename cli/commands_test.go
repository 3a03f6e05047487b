package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/contribute/contribution"
	"github.com/robinvdvleuten/contribute/model"
)

// runCLI parses and runs args like main does, capturing the output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var cli Commands
	var stdout, stderr bytes.Buffer
	parser, err := kong.New(&cli,
		kong.Name("contribute"),
		kong.Writers(&stdout, &stderr),
		kong.Bind(&cli.Globals),
		kong.Exit(func(int) {}),
	)
	assert.NoError(t, err)

	ctx, err := parser.Parse(args)
	if err != nil {
		return stdout.String(), err
	}
	err = ctx.Run()
	return stdout.String(), err
}

// newDatabase returns a seeded database and the global flags selecting it.
func newDatabase(t *testing.T) (string, []string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contribute.db")
	flags := []string{"--database", path, "--log-level", "error"}

	out, err := runCLI(t, append(flags, "seed")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Chart of accounts seeded")
	return path, flags
}

// createContribution saves a pending donation of 100 straight through the
// engine.
func createContribution(t *testing.T, path string, payLater bool) snowflake.ID {
	t.Helper()
	ctx, a, err := openApp(context.Background(), &Globals{Database: path, LogLevel: "error"})
	assert.NoError(t, err)
	defer func() { _ = a.Close() }()

	ft, err := a.store.FinancialTypeByName(ctx, "Donation")
	assert.NoError(t, err)

	res, err := a.engine.Save(ctx, &contribution.Request{
		ContactID:       7,
		FinancialTypeID: ft.ID,
		TotalAmount:     decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Status:          model.StatusPending,
		IsPayLater:      &payLater,
		Source:          "Gala",
	})
	assert.NoError(t, err)
	return res.Contribution.ID
}

func TestSeedCmd(t *testing.T) {
	_, flags := newDatabase(t)

	t.Run("Idempotent", func(t *testing.T) {
		out, err := runCLI(t, append(flags, "seed")...)
		assert.NoError(t, err)
		assert.Contains(t, out, "0 account(s), 0 financial type(s), 0 instrument(s) created")
	})

	t.Run("EmptyStatus", func(t *testing.T) {
		out, err := runCLI(t, append(flags, "status")...)
		assert.NoError(t, err)
		assert.Contains(t, out, "No contributions")
	})
}

func TestMigrateCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	out, err := runCLI(t, "--database", path, "--log-level", "error", "migrate")
	assert.NoError(t, err)
	assert.Contains(t, out, "Migrated")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCompleteCmd(t *testing.T) {
	path, flags := newDatabase(t)
	id := createContribution(t, path, false)

	out, err := runCLI(t, append(flags, "complete", id.String(), "--trxn-id", "ch_1", "--fee", "2.50", "--no-receipt")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Contribution "+id.String()+" Completed ($100.00)")
	assert.NotContains(t, out, "Receipt sent")

	out, err = runCLI(t, append(flags, "status")...)
	assert.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "Gala")

	_, err = runCLI(t, append(flags, "complete", id.String())...)
	assert.Error(t, err)
	assert.Equal(t, 2, ExitCode(&bytes.Buffer{}, err))
}

func TestPayAndBalanceCmd(t *testing.T) {
	path, flags := newDatabase(t)
	id := createContribution(t, path, true)

	out, err := runCLI(t, append(flags, "pay", id.String(), "40", "--instrument", "Check", "--check", "1001")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Payment of $40.00 recorded")
	assert.Contains(t, out, "Status Partially paid, balance $60.00")

	out, err = runCLI(t, append(flags, "balance", id.String())...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Accounts Receivable")
	assert.Contains(t, out, "Deposit Bank Account")
	assert.Contains(t, out, "Balance: $60.00")
	assert.Contains(t, out, "(1 payment(s))")

	out, err = runCLI(t, append(flags, "pay", id.String(), "60")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Status Completed, balance $0.00")
}

func TestFailCmd(t *testing.T) {
	path, flags := newDatabase(t)
	id := createContribution(t, path, false)

	out, err := runCLI(t, append(flags, "fail", id.String())...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Contribution "+id.String()+" Failed")
}

func TestReceiptCmd(t *testing.T) {
	path, flags := newDatabase(t)
	id := createContribution(t, path, true)

	out, err := runCLI(t, append(flags, "receipt", id.String(), "--raw")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "# Receipt INV_")
	assert.Contains(t, out, "Balance due: $100.00")
	assert.NotContains(t, out, "Sent")

	out, err = runCLI(t, append(flags, "receipt", id.String(), "--raw", "--send")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Sent \"Receipt INV_")
}

func TestInspectAndDeleteCmd(t *testing.T) {
	path, flags := newDatabase(t)
	id := createContribution(t, path, true)

	out, err := runCLI(t, append(flags, "inspect", id.String())...)
	assert.NoError(t, err)
	assert.Contains(t, out, "cli.Inspection{")
	assert.Contains(t, out, "LineItems:")
	assert.Contains(t, out, "Transactions:")

	out, err = runCLI(t, append(flags, "delete", id.String(), "-y")...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Deleted contribution "+id.String())

	_, err = runCLI(t, append(flags, "inspect", id.String())...)
	assert.Error(t, err)
	assert.Equal(t, 3, ExitCode(&bytes.Buffer{}, err))
}

func TestDeleteCmdWithoutTerminal(t *testing.T) {
	if isTerminal() {
		t.Skip("stdin is a terminal")
	}
	path, flags := newDatabase(t)
	id := createContribution(t, path, true)

	// Without a terminal the confirmation defaults to no.
	out, err := runCLI(t, append(flags, "delete", id.String())...)
	assert.NoError(t, err)
	assert.Contains(t, out, "Nothing deleted")
}

func TestInvalidID(t *testing.T) {
	_, flags := newDatabase(t)

	_, err := runCLI(t, append(flags, "balance", "abc")...)
	assert.Error(t, err)

	var stderr bytes.Buffer
	assert.Equal(t, 2, ExitCode(&stderr, err))
	assert.Contains(t, stderr.String(), "validation_error")
}

func TestConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings", "contribute.yaml")

	out, err := runCLI(t, "config", "init", path)
	assert.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	if !isTerminal() {
		_, err = runCLI(t, "config", "init", path)
		assert.Error(t, err)
	}

	_, err = runCLI(t, "config", "init", path, "--force")
	assert.NoError(t, err)

	out, err = runCLI(t, "--config", path, "--database", "other.db", "config", "show")
	assert.NoError(t, err)
	assert.Contains(t, out, "invoice_prefix: INV_")
	assert.Contains(t, out, "path: other.db")
}

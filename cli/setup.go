package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/contribute/accounts"
	"github.com/robinvdvleuten/contribute/config"
)

type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "migrate")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.store.Migrate(runCtx); err != nil {
		return err
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Migrated %s", pathStyle.Render(a.settings.Database.Path)))
	return nil
}

type SeedCmd struct{}

func (cmd *SeedCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := startTelemetry(context.Background(), globals, ctx.Stderr, "seed")
	defer report()

	runCtx, a, err := openApp(runCtx, globals)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.store.Migrate(runCtx); err != nil {
		return err
	}

	res, err := accounts.Seed(runCtx, a.store, a.settings.Chart)
	if err != nil {
		return err
	}
	a.resolver.Invalidate()

	printInfof(ctx.Stdout, "%d account(s), %d financial type(s), %d instrument(s) created", res.Accounts, res.Types, res.Instruments)
	printInfof(ctx.Stdout, "%d account relationship(s) created", res.Relationships)
	printSuccess(ctx.Stdout, "Chart of accounts seeded")
	return nil
}

// ConfigCmd groups settings file utilities.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write the default settings to a file."`
	Show ConfigShowCmd `cmd:"" help:"Print the effective settings."`
}

// ConfigInitCmd writes the default settings.
type ConfigInitCmd struct {
	Path  string `help:"Settings file to create." arg:"" optional:"" default:"contribute.yaml" type:"path"`
	Force bool   `help:"Overwrite an existing file without asking." short:"f"`
}

func (cmd *ConfigInitCmd) Run(ctx *kong.Context) error {
	overwrite := cmd.Force
	if _, err := os.Stat(cmd.Path); err == nil && !overwrite {
		confirmed, err := promptYesNo(ctx, fmt.Sprintf("File %q exists. Overwrite it?", cmd.Path))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			return fmt.Errorf("file exists: %s", cmd.Path)
		}
		overwrite = true
	}

	if err := os.MkdirAll(filepath.Dir(cmd.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := config.Write(cmd.Path, config.Default(), overwrite); err != nil {
		return err
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Wrote %s", pathStyle.Render(cmd.Path)))
	return nil
}

// ConfigShowCmd prints the settings after the file and environment were
// applied.
type ConfigShowCmd struct{}

func (cmd *ConfigShowCmd) Run(ctx *kong.Context, globals *Globals) error {
	settings, err := loadSettings(globals)
	if err != nil {
		return err
	}
	return config.Encode(ctx.Stdout, settings)
}
